package agent

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danpilch/tripdesk/internal/intent"
	"github.com/danpilch/tripdesk/internal/travel"
)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Args are tool arguments as decoded from JSON.
type Args map[string]any

func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int accepts JSON numbers and numeric strings.
func (a Args) Int(name string) (int, bool) {
	switch v := a[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

type Tool struct {
	Name        string
	Description string
	Params      []Param
	Run         func(ctx context.Context, args Args) (any, error)
}

// Registry is the fixed set of tools the model may call.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

func (r *Registry) add(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

func (r *Registry) Tools() []*Tool {
	return r.tools
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Call checks required arguments and runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, args Args) (any, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	for _, p := range t.Params {
		if p.Required && args.String(p.Name) == "" {
			return nil, fmt.Errorf("%s: missing required argument %q", name, p.Name)
		}
	}
	return t.Run(ctx, args)
}

func NewRegistry(trains Trains, listings Listings) *Registry {
	r := &Registry{byName: make(map[string]*Tool)}

	route := []Param{
		{Name: "origin", Type: ParamString, Description: "Departure city", Required: true},
		{Name: "destination", Type: ParamString, Description: "Arrival city", Required: true},
		{Name: "date", Type: ParamString, Description: "Travel date, YYYY-MM-DD or DD-MM-YYYY"},
	}
	location := Param{Name: "location", Type: ParamString, Description: "City or place name", Required: true}

	r.add(&Tool{
		Name:        "parse_trip_request",
		Description: "Parse a free-form trip request into intents, origin, destination, date and party size.",
		Params:      []Param{{Name: "text", Type: ParamString, Description: "The user's request", Required: true}},
		Run: func(_ context.Context, args Args) (any, error) {
			return intent.Parse(args.String("text")), nil
		},
	})

	r.add(&Tool{
		Name:        "search_trains",
		Description: "List trains between two cities. Returns indexed trains with their coach classes and the listing url needed for booking.",
		Params:      route,
		Run: func(ctx context.Context, args Args) (any, error) {
			return trains.Search(ctx, args.String("origin"), args.String("destination"), args.String("date")), nil
		},
	})

	r.add(&Tool{
		Name:        "book_train",
		Description: "Take a listed train to the checkout page. Never pays; returns the checkout url for the user.",
		Params: []Param{
			{Name: "url", Type: ParamString, Description: "Listing url returned by search_trains", Required: true},
			{Name: "train_index", Type: ParamInteger, Description: "Index of the train in the listing", Required: true},
			{Name: "coach_class", Type: ParamString, Description: "Coach class code: SL, 3A, 2A or 1A", Required: true},
		},
		Run: func(ctx context.Context, args Args) (any, error) {
			idx, ok := args.Int("train_index")
			if !ok {
				return nil, fmt.Errorf("book_train: train_index must be an integer")
			}
			return trains.Book(ctx, travel.BookRequest{
				URL:   args.String("url"),
				Index: &idx,
				Class: args.String("coach_class"),
			})
		},
	})

	r.add(&Tool{
		Name:        "search_buses",
		Description: "List buses between two cities.",
		Params:      route,
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.Buses(ctx, args.String("origin"), args.String("destination"), args.String("date")), nil
		},
	})

	r.add(&Tool{
		Name:        "search_activities",
		Description: "List tours and activities at a destination.",
		Params: []Param{
			{Name: "destination", Type: ParamString, Description: "City to explore", Required: true},
			{Name: "date", Type: ParamString, Description: "Date of the activity"},
		},
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.Activities(ctx, args.String("destination"), args.String("date")), nil
		},
	})

	r.add(&Tool{
		Name:        "search_flights",
		Description: "Find flights between two cities. City names are mapped to airport codes.",
		Params:      route,
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.Flights(ctx, args.String("origin"), args.String("destination"), args.String("date")), nil
		},
	})

	r.add(&Tool{
		Name:        "web_search",
		Description: "Search the web for travel information.",
		Params:      []Param{{Name: "query", Type: ParamString, Description: "Search query", Required: true}},
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.WebSearch(ctx, args.String("query")), nil
		},
	})

	r.add(&Tool{
		Name:        "search_hotels",
		Description: "Suggest hotels at a location.",
		Params: []Param{
			location,
			{Name: "party_size", Type: ParamInteger, Description: "Number of guests"},
		},
		Run: func(ctx context.Context, args Args) (any, error) {
			n, _ := args.Int("party_size")
			return listings.Hotels(ctx, args.String("location"), n), nil
		},
	})

	r.add(&Tool{
		Name:        "local_guides",
		Description: "Find local tour guides at a location.",
		Params:      []Param{location},
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.LocalGuides(ctx, args.String("location")), nil
		},
	})

	r.add(&Tool{
		Name:        "nearby_places",
		Description: "Find places near a location: attractions, restaurants, hospitals or car rentals.",
		Params: []Param{
			location,
			{Name: "category", Type: ParamString, Description: "What to look for, e.g. restaurants"},
		},
		Run: func(ctx context.Context, args Args) (any, error) {
			return listings.Nearby(ctx, args.String("location"), args.String("category")), nil
		},
	})

	return r
}
