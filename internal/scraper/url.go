package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/danpilch/tripdesk/internal/catalog"
)

var ErrInvalidRequest = errors.New("invalid listing request")

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// ListingDate normalizes a user supplied date to DD-MM-YYYY. An empty date
// means today.
func ListingDate(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return now.Format("02-01-2006"), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02-01-2006"), nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized date %q, use YYYY-MM-DD or DD-MM-YYYY", ErrInvalidRequest, raw)
}

// ListingURL builds the search results URL for a route and date.
func (s *Scraper) ListingURL(kind catalog.Kind, origin, destination, date string) (string, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if origin == "" && kind != catalog.KindActivity {
		return "", fmt.Errorf("%w: origin is required", ErrInvalidRequest)
	}

	day, err := ListingDate(date, s.now())
	if err != nil {
		return "", err
	}

	var tmpl, from, to string
	switch kind {
	case catalog.KindBus:
		tmpl = s.cfg.BusURL
		from = url.QueryEscape(titleCity(origin))
		to = url.QueryEscape(titleCity(destination))
	case catalog.KindActivity:
		tmpl = s.cfg.ActivityURL
		from = slugCity(origin)
		to = slugCity(destination)
	default:
		tmpl = s.cfg.TrainURL
		from = s.resolver.Segment(origin)
		to = s.resolver.Segment(destination)
	}

	return strings.NewReplacer(
		"{origin}", from,
		"{destination}", to,
		"{date}", day,
	).Replace(tmpl), nil
}

func titleCity(city string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(city), " "))
}

func slugCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), "-")
}
