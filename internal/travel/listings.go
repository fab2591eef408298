package travel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/api/flights"
	"github.com/danpilch/tripdesk/internal/api/websearch"
	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/scraper"
	"github.com/danpilch/tripdesk/internal/station"
)

// FlightSearcher is satisfied by *flights.Client.
type FlightSearcher interface {
	Search(ctx context.Context, source, destination, date string) (*flights.SearchResponse, error)
}

// WebSearcher is satisfied by *websearch.Client.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*websearch.Result, error)
}

type FlightResult struct {
	Status      string           `json:"status"`
	Source      string           `json:"source"`
	Destination string           `json:"destination"`
	Date        string           `json:"date,omitempty"`
	Count       int              `json:"flight_count"`
	Flights     []flights.Flight `json:"flights"`
	Message     string           `json:"message"`
	Display     string           `json:"display"`
}

type SearchResult struct {
	Status  string            `json:"status"`
	Query   string            `json:"query"`
	Result  *websearch.Result `json:"result,omitempty"`
	Message string            `json:"message"`
	Display string            `json:"display"`
}

// ListingService serves the non-train searches.
type ListingService struct {
	lister   Lister
	flights  FlightSearcher
	search   WebSearcher
	resolver *station.Resolver
	logger   *logrus.Logger
}

func NewListingService(lister Lister, fc FlightSearcher, ws WebSearcher, resolver *station.Resolver, logger *logrus.Logger) *ListingService {
	return &ListingService{
		lister:   lister,
		flights:  fc,
		search:   ws,
		resolver: resolver,
		logger:   logger,
	}
}

func (s *ListingService) Buses(ctx context.Context, origin, destination, date string) *Listing {
	return newListing(s.lister.Scrape(ctx, origin, destination, date, catalog.KindBus))
}

func (s *ListingService) Activities(ctx context.Context, destination, date string) *Listing {
	return newListing(s.lister.Scrape(ctx, "", destination, date, catalog.KindActivity))
}

// Flights resolves city names to airport codes and queries the flights API.
func (s *ListingService) Flights(ctx context.Context, origin, destination, date string) *FlightResult {
	res := &FlightResult{
		Source:      s.resolver.Airport(origin),
		Destination: s.resolver.Airport(destination),
		Flights:     []flights.Flight{},
	}

	if date != "" {
		iso, err := isoDate(date)
		if err != nil {
			res.Status = "error"
			res.Message = err.Error()
			res.Display = res.Message
			return res
		}
		res.Date = iso
	}

	log := s.logger.WithFields(logrus.Fields{
		"source":      res.Source,
		"destination": res.Destination,
		"date":        res.Date,
	})

	resp, err := s.flights.Search(ctx, res.Source, res.Destination, res.Date)
	if err != nil {
		log.WithField("error", err).Warn("flight search failed")
		res.Status = "error"
		res.Message = fmt.Sprintf("Failed to fetch flights from %s to %s. Please try again later.", res.Source, res.Destination)
		res.Display = res.Message
		return res
	}

	res.Status = "success"
	res.Flights = resp.Flights
	res.Count = len(resp.Flights)
	res.Message = fmt.Sprintf("Found %d flights from %s to %s.", res.Count, res.Source, res.Destination)
	res.Display = formatFlights(res)
	log.WithField("flights", res.Count).Info("flights fetched")
	return res
}

// WebSearch never fails outright; provider errors become an error status.
func (s *ListingService) WebSearch(ctx context.Context, query string) *SearchResult {
	res := &SearchResult{Query: query}
	found, err := s.search.Search(ctx, query)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"query": query,
			"error": err,
		}).Warn("web search failed")
		res.Status = "error"
		res.Message = "Web search is unavailable right now. Please try again later."
		res.Display = res.Message
		return res
	}

	res.Status = "success"
	res.Result = found
	res.Message = found.Answer
	res.Display = formatSearch(found)
	return res
}

func (s *ListingService) Hotels(ctx context.Context, destination string, partySize int) *SearchResult {
	q := "best hotels to stay in " + destination
	if partySize > 0 {
		q += fmt.Sprintf(" for %d guests", partySize)
	}
	return s.WebSearch(ctx, q)
}

func (s *ListingService) LocalGuides(ctx context.Context, destination string) *SearchResult {
	return s.WebSearch(ctx, "licensed local tour guides in "+destination)
}

func (s *ListingService) Nearby(ctx context.Context, place, category string) *SearchResult {
	if category == "" {
		category = "places to visit"
	}
	return s.WebSearch(ctx, category+" near "+place)
}

func isoDate(raw string) (string, error) {
	day, err := scraper.ListingDate(raw, time.Now())
	if err != nil {
		return "", err
	}
	t, err := time.Parse("02-01-2006", day)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

func formatFlights(res *FlightResult) string {
	if res.Count == 0 {
		return fmt.Sprintf("No flights found from %s to %s.", res.Source, res.Destination)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "FLIGHTS %s -> %s", res.Source, res.Destination)
	if res.Date != "" {
		fmt.Fprintf(&b, " (%s)", res.Date)
	}
	b.WriteString("\n")
	for i, f := range res.Flights {
		fmt.Fprintf(&b, "[%d] %s %s | %s -> %s", i, f.Airline, f.FlightNumber, f.DepartureTime, f.ArrivalTime)
		if f.Price != "" {
			fmt.Fprintf(&b, " | %s", f.Price)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatSearch(r *websearch.Result) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	if r.Source != "" {
		fmt.Fprintf(&b, "\nSource: %s", r.Source)
	}
	for _, t := range r.Topics {
		fmt.Fprintf(&b, "\n- %s", t.Text)
	}
	return strings.TrimSpace(b.String())
}
