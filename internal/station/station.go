// Package station maps free-text city names to railway station and airport
// codes, and renders the city segments used in listing URLs.
package station

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlaceholderCode is returned for empty input.
const PlaceholderCode = "XXX"

// Metro cities are listed with every station in the city grouped under one code.
var metroStations = map[string]string{
	"delhi":     "NDLS",
	"new delhi": "NDLS",
	"mumbai":    "BCT",
	"kolkata":   "HWH",
	"chennai":   "MAS",
	"hyderabad": "HYD",
	"bangalore": "SBC",
	"bengaluru": "SBC",
	"pune":      "PUNE",
	"ahmedabad": "ADI",
	"ongole":    "ONG",
}

var singleStations = map[string]string{
	"jaipur":        "JP",
	"lucknow":       "LKO",
	"agra":          "AGC",
	"varanasi":      "BSB",
	"goa":           "MAO",
	"vijayawada":    "BZA",
	"patna":         "PNBE",
	"bhopal":        "BPL",
	"nagpur":        "NGP",
	"guntur":        "GNT",
	"tirupati":      "TPTY",
	"coimbatore":    "CBE",
	"kochi":         "ERS",
	"visakhapatnam": "VSKP",
	"nellore":       "NLR",
	"mysore":        "MYS",
	"amritsar":      "ASR",
	"chandigarh":    "CDG",
}

var airports = map[string]string{
	"new york":    "JFK",
	"los angeles": "LAX",
	"london":      "LHR",
	"paris":       "CDG",
	"tokyo":       "NRT",
	"delhi":       "DEL",
	"new delhi":   "DEL",
	"mumbai":      "BOM",
	"bangalore":   "BLR",
	"bengaluru":   "BLR",
	"hyderabad":   "HYD",
	"goa":         "GOI",
	"kolkata":     "CCU",
	"pune":        "PNQ",
	"jaipur":      "JAI",
	"chennai":     "MAA",
}

// Resolver looks up station codes. The zero value is ready to use.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

func normalize(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}

// Resolve returns the station code for city and whether the city uses the
// metro (all stations) format. Unknown cities get a pseudo-code built from
// the first three non-space characters; that code is a guess and may collide.
func (r *Resolver) Resolve(city string) (code string, metro bool) {
	key := normalize(city)
	if c, ok := metroStations[key]; ok {
		return c, true
	}
	if c, ok := singleStations[key]; ok {
		return c, false
	}
	return fallbackCode(city), false
}

// Segment renders the listing URL segment for city, e.g.
// "Hyderabad--All-Stations-(HYD)" or "Jaipur-(JP)".
func (r *Resolver) Segment(city string) string {
	code, metro := r.Resolve(city)
	name := strings.ReplaceAll(titleCase(normalize(city)), " ", "-")
	if name == "" {
		name = code
	}
	if metro {
		return fmt.Sprintf("%s--All-Stations-(%s)", name, code)
	}
	return fmt.Sprintf("%s-(%s)", name, code)
}

// Airport returns the IATA code for city, falling back like Resolve.
func (r *Resolver) Airport(city string) string {
	if c, ok := airports[normalize(city)]; ok {
		return c
	}
	return fallbackCode(city)
}

func fallbackCode(city string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(city), ""))
	if compact == "" {
		return PlaceholderCode
	}
	runes := []rune(compact)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
