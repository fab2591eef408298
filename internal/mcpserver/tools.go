package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/intent"
	"github.com/danpilch/tripdesk/internal/travel"
)

type RouteInput struct {
	Origin      string `json:"origin" jsonschema:"departure city"`
	Destination string `json:"destination" jsonschema:"arrival city"`
	Date        string `json:"date,omitempty" jsonschema:"travel date, YYYY-MM-DD or DD-MM-YYYY"`
}

type ActivitiesInput struct {
	Destination string `json:"destination" jsonschema:"city to explore"`
	Date        string `json:"date,omitempty" jsonschema:"date of the activity"`
}

type BookInput struct {
	URL        string `json:"url" jsonschema:"listing url returned by search_trains"`
	TrainIndex int    `json:"train_index" jsonschema:"index of the train in the listing"`
	CoachClass string `json:"coach_class" jsonschema:"coach class code such as SL, 3A, 2A or 1A"`
}

type QueryInput struct {
	Query string `json:"query" jsonschema:"the search query"`
}

type TextInput struct {
	Text string `json:"text" jsonschema:"the traveller's request in plain language"`
}

type ListingOutput struct {
	Status    string             `json:"status"`
	Kind      string             `json:"kind"`
	URL       string             `json:"url"`
	Count     int                `json:"count"`
	Offerings []catalog.Offering `json:"offerings"`
	Message   string             `json:"message"`
	Display   string             `json:"display"`
}

type BookOutput struct {
	Status     string `json:"status"`
	BookingURL string `json:"booking_url,omitempty"`
	Message    string `json:"message"`
	Display    string `json:"display"`
}

type FlightsOutput struct {
	Status      string `json:"status"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Count       int    `json:"count"`
	Message     string `json:"message"`
	Display     string `json:"display"`
}

type SearchOutput struct {
	Status  string `json:"status"`
	Query   string `json:"query"`
	Message string `json:"message"`
	Display string `json:"display"`
}

type ParseOutput struct {
	Intents     []string `json:"intents"`
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Date        string   `json:"date,omitempty"`
	PartySize   int      `json:"party_size,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_trip_request",
		Description: "Parse a free-form trip request into intents, origin, destination, date and party size",
	}, s.handleParse)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_trains",
		Description: "List trains between two cities with their coach classes and the listing url needed for booking",
	}, s.handleSearchTrains)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "book_train",
		Description: "Take a listed train to the checkout page. Never pays; returns the checkout url",
	}, s.handleBookTrain)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_buses",
		Description: "List buses between two cities",
	}, s.handleSearchBuses)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_activities",
		Description: "List tours and activities at a destination",
	}, s.handleSearchActivities)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_flights",
		Description: "Find flights between two cities",
	}, s.handleSearchFlights)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "web_search",
		Description: "Search the web for travel information",
	}, s.handleWebSearch)
}

func (s *Server) logCall(tool string, fields logrus.Fields) {
	s.logger.WithField("tool", tool).WithFields(fields).Debug("mcp tool called")
}

func listingOutput(l *travel.Listing) ListingOutput {
	out := ListingOutput{
		Status:    string(l.Status),
		Kind:      string(l.Kind),
		URL:       l.URL,
		Count:     len(l.Offerings),
		Offerings: l.Offerings,
		Message:   l.Message,
		Display:   l.Display,
	}
	if out.Offerings == nil {
		out.Offerings = []catalog.Offering{}
	}
	return out
}

func (s *Server) handleParse(_ context.Context, _ *mcp.CallToolRequest, in TextInput) (*mcp.CallToolResult, ParseOutput, error) {
	req := intent.Parse(in.Text)
	return nil, ParseOutput{
		Intents:     req.Intents,
		Origin:      req.Origin,
		Destination: req.Destination,
		Date:        req.Date,
		PartySize:   req.PartySize,
	}, nil
}

func (s *Server) handleSearchTrains(ctx context.Context, _ *mcp.CallToolRequest, in RouteInput) (*mcp.CallToolResult, ListingOutput, error) {
	s.logCall("search_trains", logrus.Fields{"origin": in.Origin, "destination": in.Destination})
	return nil, listingOutput(s.trains.Search(ctx, in.Origin, in.Destination, in.Date)), nil
}

func (s *Server) handleBookTrain(ctx context.Context, _ *mcp.CallToolRequest, in BookInput) (*mcp.CallToolResult, BookOutput, error) {
	s.logCall("book_train", logrus.Fields{"url": in.URL, "train_index": in.TrainIndex, "coach_class": in.CoachClass})
	idx := in.TrainIndex
	res, err := s.trains.Book(ctx, travel.BookRequest{URL: in.URL, Index: &idx, Class: in.CoachClass})
	if err != nil {
		return nil, BookOutput{}, err
	}
	return nil, BookOutput{
		Status:     res.Status,
		BookingURL: res.BookingURL,
		Message:    res.Message,
		Display:    res.Display,
	}, nil
}

func (s *Server) handleSearchBuses(ctx context.Context, _ *mcp.CallToolRequest, in RouteInput) (*mcp.CallToolResult, ListingOutput, error) {
	s.logCall("search_buses", logrus.Fields{"origin": in.Origin, "destination": in.Destination})
	return nil, listingOutput(s.listings.Buses(ctx, in.Origin, in.Destination, in.Date)), nil
}

func (s *Server) handleSearchActivities(ctx context.Context, _ *mcp.CallToolRequest, in ActivitiesInput) (*mcp.CallToolResult, ListingOutput, error) {
	s.logCall("search_activities", logrus.Fields{"destination": in.Destination})
	return nil, listingOutput(s.listings.Activities(ctx, in.Destination, in.Date)), nil
}

func (s *Server) handleSearchFlights(ctx context.Context, _ *mcp.CallToolRequest, in RouteInput) (*mcp.CallToolResult, FlightsOutput, error) {
	s.logCall("search_flights", logrus.Fields{"origin": in.Origin, "destination": in.Destination})
	f := s.listings.Flights(ctx, in.Origin, in.Destination, in.Date)
	return nil, FlightsOutput{
		Status:      f.Status,
		Source:      f.Source,
		Destination: f.Destination,
		Count:       f.Count,
		Message:     f.Message,
		Display:     f.Display,
	}, nil
}

func (s *Server) handleWebSearch(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, SearchOutput, error) {
	s.logCall("web_search", logrus.Fields{"query": in.Query})
	r := s.listings.WebSearch(ctx, in.Query)
	return nil, SearchOutput{
		Status:  r.Status,
		Query:   r.Query,
		Message: r.Message,
		Display: r.Display,
	}, nil
}
