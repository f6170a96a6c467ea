package models

import "time"

type RecordChangeKind string

const (
	RecordCreated  RecordChangeKind = "created"
	RecordUpdated  RecordChangeKind = "updated"
	RecordReviewed RecordChangeKind = "reviewed"
	SchoolChanged  RecordChangeKind = "school_changed"
)

// RecordChangedEvent is published after every successful record write, and
// after directory writes with Kind SchoolChanged, so downstream caches can
// be invalidated.
type RecordChangedEvent struct {
	RecordID         string           `json:"record_id"`
	Kind             RecordChangeKind `json:"kind"`
	Module           Module           `json:"module"`
	District         string           `json:"district"`
	PreviousDistrict string           `json:"previous_district,omitempty"`
	SchoolID         string           `json:"school_id,omitempty"`
	ActivityDate     string           `json:"activity_date"`
	Status           RecordStatus     `json:"status"`
	OccurredAt       time.Time        `json:"occurred_at"`
}
