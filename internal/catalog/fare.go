package catalog

import "strings"

// FareClass is a coach class code such as "2A".
type FareClass string

const (
	ClassSleeper        FareClass = "SL"
	ClassThirdAC        FareClass = "3A"
	ClassSecondAC       FareClass = "2A"
	ClassFirstAC        FareClass = "1A"
	ClassChairCar       FareClass = "CC"
	ClassFirstClass     FareClass = "FC"
	ClassExecutiveChair FareClass = "EC"
)

var fareLabels = map[FareClass]string{
	ClassSleeper:        "Sleeper",
	ClassThirdAC:        "3rd AC",
	ClassSecondAC:       "2nd AC",
	ClassFirstAC:        "1st AC",
	ClassChairCar:       "Chair Car",
	ClassFirstClass:     "First Class",
	ClassExecutiveChair: "Executive Chair",
}

// RecognizedClasses are the codes the listing scraper looks for, in display order.
var RecognizedClasses = []FareClass{
	ClassSleeper, ClassThirdAC, ClassSecondAC, ClassFirstAC,
	ClassChairCar, ClassFirstClass, ClassExecutiveChair,
}

// DefaultClasses is assumed when a listing gives no class information.
var DefaultClasses = []FareClass{ClassSleeper, ClassThirdAC, ClassSecondAC, ClassFirstAC}

// ParseFareClass normalizes user input to a class code. Unknown codes are
// returned upper-cased so callers can report them.
func ParseFareClass(s string) FareClass {
	return FareClass(strings.ToUpper(strings.TrimSpace(s)))
}

func (c FareClass) Label() string {
	if l, ok := fareLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c FareClass) Known() bool {
	_, ok := fareLabels[c]
	return ok
}

// JoinClasses renders codes as "2A, 3A".
func JoinClasses(classes []FareClass) string {
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// ParseClasses converts configured codes, skipping blanks.
func ParseClasses(codes []string) []FareClass {
	out := make([]FareClass, 0, len(codes))
	for _, code := range codes {
		if c := ParseFareClass(code); c != "" {
			out = append(out, c)
		}
	}
	return out
}
