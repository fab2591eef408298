// Package travel ties listing scrapes, booking selection and checkout into
// the operations the gateway, agent and CLI expose.
package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/booking"
	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/checkout"
	"github.com/danpilch/tripdesk/internal/scraper"
)

var ErrInvalidRequest = errors.New("invalid request")

// Lister is satisfied by *scraper.Scraper.
type Lister interface {
	Scrape(ctx context.Context, origin, destination, date string, kind catalog.Kind) *scraper.Result
	ScrapeURL(ctx context.Context, target string, kind catalog.Kind) *scraper.Result
}

// Checkouter is satisfied by *checkout.Automator.
type Checkouter interface {
	Execute(ctx context.Context, listingURL string, snap booking.Snapshot) *checkout.Result
}

// Notifier is satisfied by *notify.Notifier.
type Notifier interface {
	SendCheckoutReady(snap booking.Snapshot, checkoutURL string, partial bool) error
	SendCheckoutFailed(snap booking.Snapshot, reason string) error
}

// Listing is a scrape result plus the text shown to the user.
type Listing struct {
	*scraper.Result
	Display string `json:"display"`
}

func newListing(res *scraper.Result) *Listing {
	l := &Listing{Result: res, Display: res.Message}
	if res.Status == scraper.StatusSuccess {
		l.Display = res.Catalog().FormatForDisplay()
	}
	return l
}

type BookRequest struct {
	URL   string `json:"url"`
	Index *int   `json:"train_index"`
	Class string `json:"coach_class"`
}

func (r BookRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.URL) == "" {
		missing = append(missing, "url")
	}
	if r.Index == nil {
		missing = append(missing, "train_index")
	}
	if strings.TrimSpace(r.Class) == "" {
		missing = append(missing, "coach_class")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required field(s): %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// BookingResult mirrors the checkout status. BookingURL is set whenever a
// page was reached, including partial runs.
type BookingResult struct {
	Status     string            `json:"status"`
	BookingURL string            `json:"booking_url,omitempty"`
	Summary    *booking.Snapshot `json:"booking_summary,omitempty"`
	Message    string            `json:"message"`
	Display    string            `json:"display"`
	Steps      []checkout.Step   `json:"steps,omitempty"`
}

func failed(msg string) *BookingResult {
	return &BookingResult{Status: string(checkout.StatusError), Message: msg, Display: msg}
}

type TrainService struct {
	lister   Lister
	checkout Checkouter
	notifier Notifier
	allowed  []catalog.FareClass
	logger   *logrus.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewTrainService wires the train workflow. notifier may be nil.
func NewTrainService(lister Lister, co Checkouter, notifier Notifier, allowed []catalog.FareClass, logger *logrus.Logger) *TrainService {
	return &TrainService{
		lister:   lister,
		checkout: co,
		notifier: notifier,
		allowed:  allowed,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

func (s *TrainService) Search(ctx context.Context, origin, destination, date string) *Listing {
	return newListing(s.lister.Scrape(ctx, origin, destination, date, catalog.KindTrain))
}

func (s *TrainService) List(ctx context.Context, url string) *Listing {
	return newListing(s.lister.ScrapeURL(ctx, url, catalog.KindTrain))
}

// Book validates the selection against the listing and replays it in the
// browser. Only request validation is returned as an error; every other
// failure is reported in the result.
func (s *TrainService) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"url":         req.URL,
		"train_index": *req.Index,
		"coach_class": req.Class,
	})

	listing := s.lister.ScrapeURL(ctx, req.URL, catalog.KindTrain)
	if listing.Status == scraper.StatusError {
		return failed(listing.Message), nil
	}

	sel := booking.NewSelector(listing.Catalog(), s.allowed)
	if _, err := sel.ChooseOffering(*req.Index); err != nil {
		log.WithField("error", err).Info("train selection rejected")
		return failed("Invalid train selection: " + err.Error()), nil
	}
	if err := sel.ChooseClass(req.Class); err != nil {
		log.WithField("error", err).Info("coach class rejected")
		return failed("Invalid coach class: " + err.Error()), nil
	}
	snap, err := sel.Summarize()
	if err != nil {
		return failed(err.Error()), nil
	}

	key := req.URL + "|" + snap.Identifier
	if !s.acquire(key) {
		log.Info("checkout already running")
		return failed(fmt.Sprintf("A checkout for train %s is already in progress. Wait for it to finish before trying again.", snap.Identifier)), nil
	}
	defer s.release(key)

	co := s.checkout.Execute(ctx, req.URL, snap)
	result := &BookingResult{
		Status:  string(co.Status),
		Summary: &snap,
		Message: co.Message,
		Steps:   co.Steps,
	}
	// A partial run that reached checkout still hands back the URL; the
	// unconfirmed step is described in the message.
	if co.Reached() {
		result.Status = string(checkout.StatusSuccess)
		result.BookingURL = co.CheckoutURL
	}

	var b strings.Builder
	b.WriteString(snap.Format())
	b.WriteString("\n" + co.Message + "\n")
	if co.CheckoutURL != "" {
		b.WriteString("Checkout: " + co.CheckoutURL + "\n")
	}
	result.Display = b.String()

	s.notify(log, snap, co)
	return result, nil
}

func (s *TrainService) notify(log *logrus.Entry, snap booking.Snapshot, co *checkout.Result) {
	if s.notifier == nil {
		return
	}
	var err error
	if co.Reached() {
		err = s.notifier.SendCheckoutReady(snap, co.CheckoutURL, co.Status == checkout.StatusPartial)
	} else {
		err = s.notifier.SendCheckoutFailed(snap, co.Message)
	}
	if err != nil {
		log.WithField("error", err).Warn("checkout notification failed")
	}
}

func (s *TrainService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *TrainService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
