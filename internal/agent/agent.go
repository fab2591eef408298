// Package agent answers a conversation turn. One backend is active per
// process: a rule-based dispatcher, an in-process Gemini model, a remote
// agent service or a local command.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/config"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/travel"
)

// Context keys remembered between turns.
const (
	ContextListingURL = "last_listing_url"
	ContextKind       = "last_kind"
	ContextOrigin     = "last_origin"
	ContextDest       = "last_destination"
)

var ErrBackendUnavailable = errors.New("agent backend unavailable")

// Trains is satisfied by *travel.TrainService.
type Trains interface {
	Search(ctx context.Context, origin, destination, date string) *travel.Listing
	List(ctx context.Context, url string) *travel.Listing
	Book(ctx context.Context, req travel.BookRequest) (*travel.BookingResult, error)
}

// Listings is satisfied by *travel.ListingService.
type Listings interface {
	Buses(ctx context.Context, origin, destination, date string) *travel.Listing
	Activities(ctx context.Context, destination, date string) *travel.Listing
	Flights(ctx context.Context, origin, destination, date string) *travel.FlightResult
	WebSearch(ctx context.Context, query string) *travel.SearchResult
	Hotels(ctx context.Context, destination string, partySize int) *travel.SearchResult
	LocalGuides(ctx context.Context, destination string) *travel.SearchResult
	Nearby(ctx context.Context, place, category string) *travel.SearchResult
}

type Request struct {
	ConversationID string
	Query          string
	Step           string
	History        []conversation.Turn
	Context        map[string]any
}

func (r Request) contextString(key string) string {
	if v, ok := r.Context[key].(string); ok {
		return v
	}
	return ""
}

// Reply is one agent answer. Context holds values to remember for the
// next turn of the same conversation.
type Reply struct {
	Message string         `json:"message"`
	Display string         `json:"display"`
	Data    any            `json:"data,omitempty"`
	Context map[string]any `json:"-"`
}

type Backend interface {
	Name() string
	Respond(ctx context.Context, req Request) (*Reply, error)
}

// Deps carries what the backends may need.
type Deps struct {
	Trains   Trains
	Listings Listings
	// APIKey is the Gemini key, used by the genai backend only.
	APIKey string
	Logger *logrus.Logger
}

// New builds the backend selected by cfg.Backend. Remote backends are
// health-checked once here.
func New(ctx context.Context, cfg config.AgentConfig, deps Deps) (Backend, error) {
	switch cfg.Backend {
	case config.BackendDirect:
		return NewDirect(deps.Trains, deps.Listings, deps.Logger), nil

	case config.BackendGenAI:
		if deps.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY or GOOGLE_API_KEY is required for the genai backend", ErrBackendUnavailable)
		}
		registry := NewRegistry(deps.Trains, deps.Listings)
		return NewGenAI(ctx, deps.APIKey, cfg.Model, cfg.MaxToolRuns, registry, deps.Logger)

	case config.BackendRemote:
		remote := NewRemote(cfg.RemoteURL, cfg.HealthURL, cfg.Timeout.Std(), deps.Logger)
		if err := remote.Check(ctx); err != nil {
			return nil, err
		}
		return remote, nil

	case config.BackendCommand:
		return NewCommand(cfg.Command, cfg.Timeout.Std(), deps.Logger), nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, cfg.Backend)
	}
}
