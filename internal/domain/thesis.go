package domain

import "time"

// ThesisStatus is the lifecycle state of a user-authored Thesis.
type ThesisStatus string

const (
	ThesisDraft    ThesisStatus = "draft"
	ThesisActive   ThesisStatus = "active"
	ThesisResolved ThesisStatus = "resolved"
	ThesisVoid     ThesisStatus = "void"
)

// Thesis is a user-authored research object. ID is a UUID string, never
// numeric, generated via google/uuid at creation time.
type Thesis struct {
	ID                string
	Title             string
	Markets           []string
	YourProbability   float64
	MarketProbability float64
	Confidence        string
	Status            ThesisStatus
	ResolutionOutcome *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
