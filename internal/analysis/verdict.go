package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decision represents the final intervention decision for a tab
type Decision string

const (
	DecisionAllow    Decision = "ALLOW"
	DecisionRedirect Decision = "REDIRECT"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the decision to uppercase.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Decision(strings.ToUpper(s))

	switch normalized {
	case DecisionAllow, DecisionRedirect:
		*d = normalized
		return nil
	default:
		return fmt.Errorf("invalid decision: %s (must be ALLOW or REDIRECT)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

// Class is the content classification a classifier assigns to a page.
type Class string

const (
	ClassWork        Class = "WORK"
	ClassNeutral     Class = "NEUTRAL"
	ClassDistraction Class = "DISTRACTION"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the class to uppercase.
func (c *Class) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Class(strings.ToUpper(s))

	switch normalized {
	case ClassWork, ClassNeutral, ClassDistraction:
		*c = normalized
		return nil
	default:
		return fmt.Errorf("invalid class: %s (must be WORK, NEUTRAL, or DISTRACTION)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (c Class) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// Page identifies the content under analysis.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is a classifier's view of one page.
type Result struct {
	Class      Class   `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Verdict is the final intervention decision for one page.
type Verdict struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Decision   Decision `json:"decision"`
	Class      Class    `json:"class"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}

// IsDistraction reports whether the classifier flagged the page.
func (v Verdict) IsDistraction() bool {
	return v.Class == ClassDistraction
}
