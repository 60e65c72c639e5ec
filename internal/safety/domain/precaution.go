package safety

import (
	"errors"
	"time"
)

// Severity classifies how dangerous the hazard is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid returns true when the severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Precaution is one safety instruction extracted from device documentation
// (or substituted by the fallback policy).
type Precaution struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"deviceId,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Severity       Severity  `json:"severity"`
	Category       string    `json:"category,omitempty"`
	Mitigation     string    `json:"mitigation,omitempty"`
	AboutReaction  string    `json:"aboutReaction,omitempty"`
	RecommendedPPE string    `json:"recommendedPpe,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// Validate checks precaution invariants.
func (p Precaution) Validate() error {
	if p.Title == "" {
		return errors.New("safety precaution: empty title")
	}
	if p.Severity != "" && !p.Severity.Valid() {
		return errors.New("safety precaution: invalid severity")
	}
	return nil
}
