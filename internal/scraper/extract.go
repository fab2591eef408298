package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/config"
)

const maxNameLength = 100

var (
	identifierPattern = regexp.MustCompile(`\b(\d{4,5})\b`)
	timePattern       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	pricePattern      = regexp.MustCompile(`(?:₹|Rs\.?|INR|\$|€|£)\s*\d[\d,]*(?:\.\d{1,2})?`)
	durationPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:h|hr|hrs|hour|hours)\b\s*(?:(\d{1,2})\s*(?:m|min|mins|minutes)\b)?`)
	seatsPattern      = regexp.MustCompile(`(?i)\b(\d+)\s*(?:seats?|available|avl)\b`)
	ratingPattern     = regexp.MustCompile(`(?i)\b([0-5](?:\.\d)?)\s*(?:/\s*5|★|stars?)`)
	classPattern      = regexp.MustCompile(`\b(SL|3A|2A|1A|CC|FC|EC)\b`)
	chromePattern     = regexp.MustCompile(`(?i)\b(search|filter|sort|javascript|view all)\b`)
)

// Options tune extraction.
type Options struct {
	Kind          catalog.Kind
	MaxOfferings  int
	ScanLimit     int
	MinTextLength int
	DedupKey      string
}

func optionsFromConfig(cfg config.ScraperConfig, kind catalog.Kind) Options {
	return Options{
		Kind:          kind,
		MaxOfferings:  cfg.MaxOfferings,
		ScanLimit:     cfg.ContentScanLimit,
		MinTextLength: cfg.MinTextLength,
		DedupKey:      cfg.DedupKey,
	}
}

type parsed struct {
	node     *html.Node
	offering catalog.Offering
}

// Extract returns the offerings found in doc, in document order, together
// with the name of the candidate strategy that matched.
func Extract(doc *goquery.Document, opts Options) ([]catalog.Offering, string) {
	if opts.MaxOfferings <= 0 || opts.MaxOfferings > catalog.MaxOfferings {
		opts.MaxOfferings = catalog.MaxOfferings
	}

	doc.Find("script, style, noscript").Remove()
	strategy, nodes := Candidates(doc, Keywords[opts.Kind], opts.ScanLimit)

	var accepted []parsed
	for _, n := range nodes {
		if o, ok := parseCandidate(VisibleText(n), opts); ok {
			accepted = append(accepted, parsed{node: n, offering: o})
		}
	}

	// A container wrapping several listings parses as a single listing with
	// mixed fields, so drop it. A card whose only accepted descendants repeat
	// its own listing is kept; dedup below then prefers it over the inner
	// fragment since nodes arrive in document order.
	var kept []parsed
	for i, p := range accepted {
		ids := make(map[string]bool)
		for j, q := range accepted {
			if i != j && isAncestor(p.node, q.node) {
				ids[q.offering.Identifier] = true
			}
		}
		if len(ids) < 2 {
			kept = append(kept, p)
		}
	}

	seen := make(map[string]bool)
	var out []catalog.Offering
	for _, p := range kept {
		key := p.offering.Identifier
		if opts.DedupKey == config.DedupIdentifierDeparture {
			key += "@" + p.offering.Departure
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		p.offering.Index = len(out)
		out = append(out, p.offering)
		if len(out) >= opts.MaxOfferings {
			break
		}
	}
	return out, strategy
}

func parseCandidate(text string, opts Options) (catalog.Offering, bool) {
	if utf8.RuneCountInString(text) < opts.MinTextLength {
		return catalog.Offering{}, false
	}
	if chromePattern.MatchString(text) {
		return catalog.Offering{}, false
	}

	id := identifierPattern.FindStringSubmatch(text)
	if id == nil {
		return catalog.Offering{}, false
	}

	times := timePattern.FindAllString(text, -1)
	if len(times) < 2 {
		return catalog.Offering{}, false
	}

	o := catalog.Offering{
		Kind:       opts.Kind,
		Identifier: id[1],
		Name:       extractName(text, id[1]),
		Departure:  times[0],
		Arrival:    times[1],
		Duration:   extractDuration(text),
		Price:      extractPrice(text),
		Rating:     extractRating(text),
	}
	o.SeatsAvailable = catalog.UnknownSeats
	if m := seatsPattern.FindStringSubmatch(text); m != nil {
		o.SeatsAvailable = m[1]
	}
	if opts.Kind == catalog.KindTrain {
		o.AvailableClasses = extractClasses(text)
	}
	return o, true
}

func extractName(text, identifier string) string {
	for _, seg := range strings.Split(text, " | ") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(seg), identifier))
		if loc := timePattern.FindStringIndex(name); loc != nil && loc[0] > 0 {
			name = strings.TrimSpace(name[:loc[0]])
		}
		name = strings.TrimLeft(name, "-–:# ")
		if name == "" || (timePattern.MatchString(name) && len(name) <= 5) {
			continue
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			name = string([]rune(name)[:maxNameLength])
		}
		return name
	}
	return identifier
}

func extractDuration(text string) string {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return catalog.UnknownDuration
	}
	if m[2] != "" {
		return fmt.Sprintf("%sh %sm", m[1], m[2])
	}
	return m[1] + "h"
}

func extractPrice(text string) string {
	if m := pricePattern.FindString(text); m != "" {
		return strings.Join(strings.Fields(m), "")
	}
	return catalog.UnknownPrice
}

func extractRating(text string) float64 {
	if m := ratingPattern.FindStringSubmatch(text); m != nil {
		if r, err := strconv.ParseFloat(m[1], 64); err == nil {
			return r
		}
	}
	return catalog.DefaultRating
}

// extractClasses lists the recognized codes present in text. A listing that
// shows none is assumed to offer the default set.
func extractClasses(text string) []catalog.FareClass {
	found := make(map[catalog.FareClass]bool)
	for _, m := range classPattern.FindAllString(strings.ToUpper(text), -1) {
		found[catalog.FareClass(m)] = true
	}
	if len(found) == 0 {
		return append([]catalog.FareClass(nil), catalog.DefaultClasses...)
	}
	var out []catalog.FareClass
	for _, c := range catalog.RecognizedClasses {
		if found[c] {
			out = append(out, c)
		}
	}
	return out
}
