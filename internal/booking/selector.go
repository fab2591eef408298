// Package booking validates a user's choice of offering and fare class.
package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danpilch/tripdesk/internal/catalog"
)

var (
	ErrInvalidState     = errors.New("invalid booking state")
	ErrClassUnavailable = errors.New("fare class unavailable")
)

type State int

const (
	StateEmpty State = iota
	StateTrainChosen
	StateClassChosen
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTrainChosen:
		return "train_chosen"
	case StateClassChosen:
		return "class_chosen"
	case StateConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the confirmed selection handed to checkout.
type Snapshot struct {
	OfferingIndex int               `json:"train_index"`
	Kind          catalog.Kind      `json:"kind"`
	Identifier    string            `json:"train_number"`
	Name          string            `json:"train_name"`
	Departure     string            `json:"departure"`
	Arrival       string            `json:"arrival"`
	Duration      string            `json:"duration"`
	Class         catalog.FareClass `json:"coach_class"`
	ClassLabel    string            `json:"coach_name"`
	Price         string            `json:"price"`
}

// Format renders the snapshot as a short summary for the user.
func (s Snapshot) Format() string {
	var b strings.Builder
	b.WriteString("BOOKING SUMMARY\n")
	fmt.Fprintf(&b, "Train: %s - %s\n", s.Identifier, s.Name)
	fmt.Fprintf(&b, "Departure: %s | Arrival: %s | Duration: %s\n", s.Departure, s.Arrival, s.Duration)
	fmt.Fprintf(&b, "Coach: %s (%s)\n", s.ClassLabel, s.Class)
	fmt.Fprintf(&b, "Starting from: %s\n", s.Price)
	return b.String()
}

// Selector walks Empty -> TrainChosen -> ClassChosen -> Confirmed for one
// catalog. It is not safe for concurrent use.
type Selector struct {
	catalog *catalog.Catalog
	allowed []catalog.FareClass

	state    State
	offering catalog.Offering
	class    catalog.FareClass
	snapshot Snapshot
}

// NewSelector returns a selector over c. Only classes in allowed can be
// booked even when the listing shows more.
func NewSelector(c *catalog.Catalog, allowed []catalog.FareClass) *Selector {
	return &Selector{
		catalog: c,
		allowed: append([]catalog.FareClass(nil), allowed...),
	}
}

func (s *Selector) State() State {
	return s.state
}

// ChooseOffering binds the offering at index. Choosing again before
// confirmation replaces the offering and clears any chosen class.
func (s *Selector) ChooseOffering(index int) (catalog.Offering, error) {
	if s.state == StateConfirmed {
		return catalog.Offering{}, fmt.Errorf("%w: selection is already confirmed", ErrInvalidState)
	}
	o, err := s.catalog.Get(index)
	if err != nil {
		return catalog.Offering{}, err
	}
	s.offering = o
	s.class = ""
	s.state = StateTrainChosen
	return o, nil
}

// ChooseClass validates code against the chosen offering and the allow-list.
func (s *Selector) ChooseClass(code string) error {
	switch s.state {
	case StateTrainChosen, StateClassChosen:
	case StateConfirmed:
		return fmt.Errorf("%w: selection is already confirmed", ErrInvalidState)
	default:
		return fmt.Errorf("%w: choose a train before choosing a coach class", ErrInvalidState)
	}

	class := catalog.ParseFareClass(code)
	if !s.offering.HasClass(class) {
		return fmt.Errorf("%w: %q is not offered on train %s, available classes: %s",
			ErrClassUnavailable, class, s.offering.Identifier, catalog.JoinClasses(s.offering.AvailableClasses))
	}
	if !s.isAllowed(class) {
		return fmt.Errorf("%w: %q cannot be booked here, bookable classes: %s",
			ErrClassUnavailable, class, catalog.JoinClasses(s.allowed))
	}

	s.class = class
	s.state = StateClassChosen
	return nil
}

// Summarize confirms the selection. Repeated calls return the same snapshot.
func (s *Selector) Summarize() (Snapshot, error) {
	switch s.state {
	case StateConfirmed:
		return s.snapshot, nil
	case StateClassChosen:
	default:
		return Snapshot{}, fmt.Errorf("%w: choose a train and a coach class first (state %s)", ErrInvalidState, s.state)
	}

	s.snapshot = Snapshot{
		OfferingIndex: s.offering.Index,
		Kind:          s.offering.Kind,
		Identifier:    s.offering.Identifier,
		Name:          s.offering.Name,
		Departure:     s.offering.Departure,
		Arrival:       s.offering.Arrival,
		Duration:      s.offering.Duration,
		Class:         s.class,
		ClassLabel:    s.class.Label(),
		Price:         s.offering.Price,
	}
	s.state = StateConfirmed
	return s.snapshot, nil
}

func (s *Selector) isAllowed(c catalog.FareClass) bool {
	for _, a := range s.allowed {
		if a == c {
			return true
		}
	}
	return false
}
