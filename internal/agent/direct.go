package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/intent"
	"github.com/danpilch/tripdesk/internal/scraper"
	"github.com/danpilch/tripdesk/internal/travel"
)

const helpText = `I can help with trains, buses, flights, hotels, activities and local tips. Try:
  - "trains from Ongole to Hyderabad on 04-11-2025"
  - "buses from Delhi to Jaipur"
  - "flights from Delhi to Mumbai on 2025-12-01"
  - "hotels in Goa for 2 people"
After a train search, reply "book 2 in 3A" to go to checkout.`

// Direct answers from the parsed intent without a language model.
type Direct struct {
	trains   Trains
	listings Listings
	logger   *logrus.Logger
}

func NewDirect(trains Trains, listings Listings, logger *logrus.Logger) *Direct {
	return &Direct{trains: trains, listings: listings, logger: logger}
}

func (d *Direct) Name() string { return "direct" }

type section struct {
	display string
	data    any
}

func (d *Direct) Respond(ctx context.Context, req Request) (*Reply, error) {
	parsed := intent.Parse(req.Query)
	d.logger.WithFields(logrus.Fields{
		"conversation_id": req.ConversationID,
		"intents":         parsed.Intents,
		"origin":          parsed.Origin,
		"destination":     parsed.Destination,
	}).Debug("query parsed")

	reply := &Reply{Context: map[string]any{}}

	if parsed.SelectIndex != nil {
		return d.book(ctx, req, parsed, reply)
	}

	// Fill in the route from earlier turns when the user only names one end.
	if parsed.Origin == "" {
		parsed.Origin = req.contextString(ContextOrigin)
	}
	if parsed.Destination == "" {
		parsed.Destination = req.contextString(ContextDest)
	}

	var sections []section
	data := map[string]any{}
	for _, name := range parsed.Intents {
		s, ok := d.dispatch(ctx, name, parsed, reply)
		if !ok {
			continue
		}
		sections = append(sections, s)
		if s.data != nil {
			data[name] = s.data
		}
	}

	if len(sections) == 0 {
		if parsed.Destination != "" {
			sections = append(sections, d.searchSection(d.listings.WebSearch(ctx, "travel guide for "+parsed.Destination)))
		} else {
			reply.Message = "Tell me where and how you want to travel."
			reply.Display = helpText
			return reply, nil
		}
	}

	if parsed.Origin != "" {
		reply.Context[ContextOrigin] = parsed.Origin
	}
	if parsed.Destination != "" {
		reply.Context[ContextDest] = parsed.Destination
	}

	var displays []string
	for _, s := range sections {
		displays = append(displays, s.display)
	}
	reply.Display = strings.Join(displays, "\n\n")
	reply.Message = firstLine(reply.Display)
	if len(data) > 0 {
		reply.Data = data
	}
	return reply, nil
}

func (d *Direct) dispatch(ctx context.Context, name string, p intent.Request, reply *Reply) (section, bool) {
	switch name {
	case intent.Trains:
		if p.Origin == "" || p.Destination == "" {
			return section{display: "To search trains, tell me both cities, e.g. \"trains from Delhi to Jaipur on 2025-12-01\"."}, true
		}
		l := d.trains.Search(ctx, p.Origin, p.Destination, p.Date)
		if l.Status == scraper.StatusSuccess {
			reply.Context[ContextListingURL] = l.URL
			reply.Context[ContextKind] = string(catalog.KindTrain)
		}
		return section{display: listingDisplay(l), data: l}, true

	case intent.Buses:
		if p.Origin == "" || p.Destination == "" {
			return section{display: "To search buses, tell me both cities, e.g. \"buses from Delhi to Jaipur\"."}, true
		}
		l := d.listings.Buses(ctx, p.Origin, p.Destination, p.Date)
		return section{display: listingDisplay(l), data: l}, true

	case intent.Flights:
		if p.Origin == "" || p.Destination == "" {
			return section{display: "To search flights, tell me both cities, e.g. \"flights from Delhi to Mumbai\"."}, true
		}
		f := d.listings.Flights(ctx, p.Origin, p.Destination, p.Date)
		return section{display: f.Display, data: f}, true

	case intent.Activities:
		if p.Destination == "" {
			return section{display: "Which city would you like activities for?"}, true
		}
		l := d.listings.Activities(ctx, p.Destination, p.Date)
		return section{display: listingDisplay(l), data: l}, true

	case intent.Hotels:
		if p.Destination == "" {
			return section{display: "Which city should I look for hotels in?"}, true
		}
		return d.searchSection(d.listings.Hotels(ctx, p.Destination, p.PartySize)), true

	case intent.LocalGuides:
		if p.Destination == "" {
			return section{}, false
		}
		return d.searchSection(d.listings.LocalGuides(ctx, p.Destination)), true

	case intent.Restaurants, intent.CarRentals, intent.Hospitals:
		if p.Destination == "" {
			return section{}, false
		}
		category := strings.ReplaceAll(name, "_", " ")
		return d.searchSection(d.listings.Nearby(ctx, p.Destination, category)), true

	default:
		return section{}, false
	}
}

func (d *Direct) searchSection(res *travel.SearchResult) section {
	return section{display: res.Display, data: res}
}

// book handles "book N in CLASS" against the last train listing shown in
// this conversation.
func (d *Direct) book(ctx context.Context, req Request, p intent.Request, reply *Reply) (*Reply, error) {
	url := req.contextString(ContextListingURL)
	if url == "" {
		reply.Message = "Search for trains first, then pick one by index."
		reply.Display = reply.Message
		return reply, nil
	}
	if p.SelectClass == "" {
		l := d.trains.List(ctx, url)
		reply.Message = fmt.Sprintf("Which coach class for train %d? Reply e.g. \"book %d in 3A\".", *p.SelectIndex, *p.SelectIndex)
		reply.Display = reply.Message
		if l.Status == scraper.StatusSuccess {
			if o, err := l.Catalog().Get(*p.SelectIndex); err == nil {
				reply.Display += "\nAvailable coaches: " + catalog.JoinClasses(o.AvailableClasses)
			}
		}
		return reply, nil
	}

	res, err := d.trains.Book(ctx, travel.BookRequest{URL: url, Index: p.SelectIndex, Class: p.SelectClass})
	if err != nil {
		return nil, err
	}
	reply.Message = res.Message
	reply.Display = res.Display
	if reply.Display == "" {
		reply.Display = res.Message
	}
	reply.Data = res
	return reply, nil
}

func listingDisplay(l *travel.Listing) string {
	if l.Status == scraper.StatusSuccess {
		return l.Message + "\n" + l.Display
	}
	return l.Display
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
