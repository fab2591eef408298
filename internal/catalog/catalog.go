// Package catalog holds the offerings extracted from one listing page.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// MaxOfferings bounds every catalog.
const MaxOfferings = 20

var ErrOutOfRange = errors.New("offering index out of range")

// Kind is the type of thing being listed.
type Kind string

const (
	KindTrain    Kind = "train"
	KindBus      Kind = "bus"
	KindActivity Kind = "activity"
)

func (k Kind) Plural() string {
	switch k {
	case KindBus:
		return "buses"
	case KindActivity:
		return "activities"
	default:
		return "trains"
	}
}

// ParseKind accepts singular or plural names and defaults to trains.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bus", "buses":
		return KindBus
	case "activity", "activities":
		return KindActivity
	default:
		return KindTrain
	}
}

// Placeholders for fields the listing page did not provide.
const (
	UnknownTime     = "TBD"
	UnknownDuration = "N/A"
	UnknownPrice    = "Contact"
	UnknownSeats    = "Multiple"
	DefaultRating   = 4.0
)

// Offering is one bookable row extracted from a listing page.
type Offering struct {
	Index            int         `json:"index"`
	Kind             Kind        `json:"kind"`
	Identifier       string      `json:"identifier"`
	Name             string      `json:"name"`
	Departure        string      `json:"departure"`
	Arrival          string      `json:"arrival"`
	Duration         string      `json:"duration"`
	Price            string      `json:"price"`
	AvailableClasses []FareClass `json:"available_classes"`
	SeatsAvailable   string      `json:"seats_available"`
	Rating           float64     `json:"rating"`
}

// HasClass reports whether c is listed for the offering.
func (o Offering) HasClass(c FareClass) bool {
	for _, have := range o.AvailableClasses {
		if have == c {
			return true
		}
	}
	return false
}

// Catalog is an ordered, read-only list of offerings indexed 0..N-1.
type Catalog struct {
	kind      Kind
	url       string
	offerings []Offering
}

// New builds a catalog from offerings in extraction order. Indexes are
// reassigned densely and anything past MaxOfferings is dropped.
func New(kind Kind, url string, offerings []Offering) *Catalog {
	if len(offerings) > MaxOfferings {
		offerings = offerings[:MaxOfferings]
	}
	items := make([]Offering, len(offerings))
	for i, o := range offerings {
		o.Index = i
		if o.Kind == "" {
			o.Kind = kind
		}
		o.AvailableClasses = append([]FareClass(nil), o.AvailableClasses...)
		items[i] = o
	}
	return &Catalog{kind: kind, url: url, offerings: items}
}

func (c *Catalog) Kind() Kind { return c.kind }

func (c *Catalog) URL() string { return c.url }

func (c *Catalog) Size() int { return len(c.offerings) }

// Get returns the offering at index.
func (c *Catalog) Get(index int) (Offering, error) {
	if index < 0 || index >= len(c.offerings) {
		if len(c.offerings) == 0 {
			return Offering{}, fmt.Errorf("%w: index %d requested but no %s are listed", ErrOutOfRange, index, c.kind.Plural())
		}
		return Offering{}, fmt.Errorf("%w: index %d, valid range is [0,%d]", ErrOutOfRange, index, len(c.offerings)-1)
	}
	return c.offerings[index], nil
}

// Offerings returns a copy of the catalog entries.
func (c *Catalog) Offerings() []Offering {
	out := make([]Offering, len(c.offerings))
	copy(out, c.offerings)
	return out
}

const rule = "===================================================================================================="

// FormatForDisplay renders the catalog for the user to pick from.
func (c *Catalog) FormatForDisplay() string {
	if len(c.offerings) == 0 {
		return fmt.Sprintf("No %s found.", c.kind.Plural())
	}

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("AVAILABLE " + strings.ToUpper(c.kind.Plural()) + "\n")
	b.WriteString(rule + "\n")

	for _, o := range c.offerings {
		fmt.Fprintf(&b, "\n[%d] %s - %s\n", o.Index, o.Identifier, o.Name)
		fmt.Fprintf(&b, "    Departure: %s | Arrival: %s | Duration: %s\n", o.Departure, o.Arrival, o.Duration)
		fmt.Fprintf(&b, "    Starting from: %s\n", o.Price)
		if c.kind == KindTrain {
			fmt.Fprintf(&b, "    Available Coaches: %s\n", JoinClasses(o.AvailableClasses))
		}
		fmt.Fprintf(&b, "    Seats Available: %s | Rating: %.1f\n", o.SeatsAvailable, o.Rating)
	}

	b.WriteString("\n" + rule + "\n")
	if c.kind == KindTrain {
		fmt.Fprintf(&b, "Select a train by index [0-%d] and a coach class.\n", len(c.offerings)-1)
	} else {
		fmt.Fprintf(&b, "Select an option by index [0-%d].\n", len(c.offerings)-1)
	}
	return b.String()
}
