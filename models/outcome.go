package models

import (
	"fmt"
	"strings"
)

// Outcome is one of the colors a round can draw
type Outcome string

const (
	OutcomeRed    Outcome = "red"
	OutcomeBlue   Outcome = "blue"
	OutcomeGreen  Outcome = "green"
	OutcomeYellow Outcome = "yellow"
	OutcomePurple Outcome = "purple"
	OutcomeOrange Outcome = "orange"
)

// Outcomes is the fixed outcome set in draw order
var Outcomes = []Outcome{
	OutcomeRed,
	OutcomeBlue,
	OutcomeGreen,
	OutcomeYellow,
	OutcomePurple,
	OutcomeOrange,
}

// IsValid reports whether the outcome belongs to the outcome set
func (o Outcome) IsValid() bool {
	for _, candidate := range Outcomes {
		if o == candidate {
			return true
		}
	}
	return false
}

// ParseOutcome normalizes and validates a color name
func ParseOutcome(raw string) (Outcome, error) {
	outcome := Outcome(strings.ToLower(strings.TrimSpace(raw)))
	if !outcome.IsValid() {
		return "", fmt.Errorf("unknown outcome %q", raw)
	}
	return outcome, nil
}

func (o Outcome) String() string {
	return string(o)
}
