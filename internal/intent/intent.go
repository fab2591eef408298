// Package intent pulls trip details out of a free-text travel request.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	Flights     = "flights"
	Trains      = "trains"
	Buses       = "buses"
	Hotels      = "hotels"
	Activities  = "activities"
	Restaurants = "restaurants"
	CarRentals  = "car_rentals"
	Hospitals   = "hospitals"
	LocalGuides = "local_guides"
	Booking     = "booking"
)

var intentPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{Flights, regexp.MustCompile(`(?i)\b(flights?|fly|flying|airline|airfare|plane)\b`)},
	{Trains, regexp.MustCompile(`(?i)\b(trains?|rail|railways?|express|irctc)\b`)},
	{Buses, regexp.MustCompile(`(?i)\b(bus|buses|coach bus|volvo)\b`)},
	{Hotels, regexp.MustCompile(`(?i)\b(hotels?|stay|accommodation|resort|hostel|room)\b`)},
	{Activities, regexp.MustCompile(`(?i)\b(activities|activity|things to do|sightseeing|tours?|attractions?)\b`)},
	{Restaurants, regexp.MustCompile(`(?i)\b(restaurants?|food|eat|dining|cafe)\b`)},
	{CarRentals, regexp.MustCompile(`(?i)\b(car rentals?|rent a car|cab|taxi)\b`)},
	{Hospitals, regexp.MustCompile(`(?i)\b(hospitals?|clinic|doctor|medical)\b`)},
	{LocalGuides, regexp.MustCompile(`(?i)\b(guides?|local guide)\b`)},
}

var (
	routePattern       = regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z .]*?)\s+to\s+([a-z][a-z .]*?)(?:\s+(?:on|for|by|in|at|with|tomorrow|today)\b|\s+\d|[,.?!]|$)`)
	originPattern      = regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z .]*?)(?:\s+(?:to|on|for|by|in)\b|\s+\d|[,.?!]|$)`)
	destinationKeyword = regexp.MustCompile(`(?i)\b(?:to|in|at|visit|visiting)\s`)
	destinationPattern = regexp.MustCompile(`(?i)^(?:to|in|at|visit|visiting)\s+([a-z][a-z .]*?)(?:\s+(?:to|in|at|from|on|for|by|with|tomorrow|today)\b|\s+\d|[,.?!]|$)`)
	datePattern        = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|\d{1,2}[-/]\d{1,2}[-/]\d{4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\s+\d{4}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\s+\d{1,2},?\s+\d{4})\b`)
	partyPattern       = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:people|persons?|adults?|travell?ers?|passengers?|pax|guests?)\b`)
	bookPattern        = regexp.MustCompile(`(?i)\b(?:book|select|choose|pick)\s+(?:(?:train|option|number|index)\s+)?#?(\d{1,2})\b(?:.*?\b(SL|3A|2A|1A|CC|FC|EC)\b)?`)
)

var notPlaces = map[string]bool{
	"book": true, "go": true, "travel": true, "find": true, "get": true, "see": true,
	"the": true, "a": true, "me": true, "plan": true, "trip": true, "do": true,
}

// Request is the structured form of a travel query. Fields the text does
// not mention are left empty.
type Request struct {
	Raw         string   `json:"raw"`
	Intents     []string `json:"intents"`
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Date        string   `json:"date,omitempty"`
	PartySize   int      `json:"party_size,omitempty"`

	// Set for follow-ups such as "book 2 in 3A".
	SelectIndex *int   `json:"select_index,omitempty"`
	SelectClass string `json:"select_class,omitempty"`
}

func (r Request) Has(intent string) bool {
	for _, i := range r.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Parse never fails; unrecognized text yields a Request with no intents.
func Parse(text string) Request {
	req := Request{Raw: text, Intents: []string{}}
	text = strings.TrimSpace(text)

	for _, p := range intentPatterns {
		if p.pattern.MatchString(text) {
			req.Intents = append(req.Intents, p.name)
		}
	}

	if m := routePattern.FindStringSubmatch(text); m != nil {
		req.Origin = cleanPlace(m[1])
		req.Destination = cleanPlace(m[2])
	}
	if req.Origin == "" {
		if m := originPattern.FindStringSubmatch(text); m != nil {
			req.Origin = cleanPlace(m[1])
		}
	}
	if req.Destination == "" {
		req.Destination = firstDestination(text)
	}

	if m := datePattern.FindStringSubmatch(text); m != nil {
		req.Date = m[1]
	}
	if m := partyPattern.FindStringSubmatch(text); m != nil {
		req.PartySize, _ = strconv.Atoi(m[1])
	}

	if m := bookPattern.FindStringSubmatch(text); m != nil {
		idx, _ := strconv.Atoi(m[1])
		req.SelectIndex = &idx
		req.SelectClass = strings.ToUpper(m[2])
		req.Intents = append(req.Intents, Booking)
	}

	return req
}

// firstDestination tries every "to X" / "in X" phrase in order, so that
// "want to go to Goa" resolves to Goa rather than "go".
func firstDestination(text string) string {
	for _, loc := range destinationKeyword.FindAllStringIndex(text, -1) {
		m := destinationPattern.FindStringSubmatch(text[loc[0]:])
		if m == nil {
			continue
		}
		if place := cleanPlace(m[1]); place != "" {
			return place
		}
	}
	return ""
}

func cleanPlace(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if notPlaces[strings.ToLower(s)] {
		return ""
	}
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
