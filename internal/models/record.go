package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"impact-service/shared/utils"
	"reflect"
	"strings"
)

// RawRecord is one field-submitted activity record.
type RawRecord struct {
	ID           string        `json:"id" db:"id"`
	Module       Module        `json:"module" db:"module"`
	ActivityDate Date          `json:"date" db:"activity_date"`
	District     string        `json:"district" db:"district"`
	SchoolID     *string       `json:"schoolId,omitempty" db:"school_id"`
	SchoolName   string        `json:"schoolName" db:"school_name"`
	ProgramType  string        `json:"programType,omitempty" db:"program_type"`
	FollowUpDate *Date         `json:"followUpDate,omitempty" db:"follow_up_date"`
	Status       RecordStatus  `json:"status" db:"status"`
	Payload      RecordPayload `json:"payload" db:"payload"`
	CreatedBy    string        `json:"createdBy" db:"created_by"`
	ReviewedBy   *string       `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewNote   *string       `json:"reviewNote,omitempty" db:"review_note"`
	CreatedAt    int64         `json:"createdAt" db:"created_at"`
	UpdatedAt    int64         `json:"updatedAt" db:"updated_at"`
}

// RecordPayload is a tagged union keyed by the record's module. Exactly one
// of the module branches is set; Extra keeps module-specific optional fields
// that have no schema yet.
type RecordPayload struct {
	Training   *TrainingPayload   `json:"training,omitempty"`
	Visit      *VisitPayload      `json:"visit,omitempty"`
	Assessment *AssessmentPayload `json:"assessment,omitempty"`
	Story      *StoryPayload      `json:"story,omitempty"`
	Extra      utils.JSONMap      `json:"extra,omitempty"`
}

type TrainingParticipant struct {
	Name string `json:"name,omitempty"`
	Sex  string `json:"sex,omitempty"`
	Role string `json:"role,omitempty"`
}

type TrainingPayload struct {
	Topic             string                `json:"topic,omitempty"`
	Participants      []TrainingParticipant `json:"participants,omitempty"`
	MaleTeachers      FlexNumber            `json:"maleTeachers"`
	FemaleTeachers    FlexNumber            `json:"femaleTeachers"`
	DurationHours     FlexNumber            `json:"durationHours"`
	CurrentEnrollment FlexNumber            `json:"currentEnrollment"`
}

type VisitPayload struct {
	VisitType          string       `json:"visitType,omitempty"`
	ObservationScore   FlexNumber   `json:"observationScore"`
	ObservationRatings []FlexNumber `json:"observationRatings,omitempty"`
	TeachersObserved   FlexNumber   `json:"teachersObserved"`
	CurrentEnrollment  FlexNumber   `json:"currentEnrollment"`
	Latitude           FlexNumber   `json:"latitude"`
	Longitude          FlexNumber   `json:"longitude"`
}

type AssessmentPayload struct {
	Cycle             string            `json:"cycle"`
	Grade             string            `json:"grade,omitempty"`
	Learners          []EgraLearnerRow  `json:"learners"`
	Summary           *EgraClassSummary `json:"summary,omitempty"`
	CurrentEnrollment FlexNumber        `json:"currentEnrollment"`
}

type StoryPayload struct {
	StoriesWritten   FlexNumber `json:"storiesWritten"`
	StoriesPublished FlexNumber `json:"storiesPublished"`
	Anthology        string     `json:"anthology,omitempty"`
}

// DecodePayload parses a flat form payload into the branch for module.
// Unknown keys are kept in Extra.
func DecodePayload(module Module, raw json.RawMessage) (RecordPayload, error) {
	var p RecordPayload
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var target any
	switch module {
	case ModuleTraining:
		p.Training = &TrainingPayload{}
		target = p.Training
	case ModuleVisit:
		p.Visit = &VisitPayload{}
		target = p.Visit
	case ModuleAssessment:
		p.Assessment = &AssessmentPayload{}
		target = p.Assessment
	case ModuleStory:
		p.Story = &StoryPayload{}
		target = p.Story
	default:
		return p, fmt.Errorf("%w: unknown module %q", ErrMalformedPayload, module)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return p, fmt.Errorf("%w: payload must be a JSON object", ErrMalformedPayload)
	}
	known := jsonFieldNames(target)
	for k, v := range all {
		if known[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = utils.JSONMap{}
		}
		p.Extra[k] = v
	}

	return p, nil
}

// Matches reports whether the populated branch agrees with module.
func (p RecordPayload) Matches(module Module) bool {
	switch module {
	case ModuleTraining:
		return p.Training != nil
	case ModuleVisit:
		return p.Visit != nil
	case ModuleAssessment:
		return p.Assessment != nil
	case ModuleStory:
		return p.Story != nil
	}
	return false
}

// ReportedEnrollment returns the enrollment figure carried by any branch.
func (p RecordPayload) ReportedEnrollment() FlexNumber {
	switch {
	case p.Training != nil:
		return p.Training.CurrentEnrollment
	case p.Visit != nil:
		return p.Visit.CurrentEnrollment
	case p.Assessment != nil:
		return p.Assessment.CurrentEnrollment
	}
	return FlexNumber{}
}

func (p RecordPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record payload: %w", err)
	}
	return string(b), nil
}

func (p *RecordPayload) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*p = RecordPayload{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("RecordPayload: Scan failed, expected []byte or string but got %T", value)
	}
	if len(b) == 0 {
		*p = RecordPayload{}
		return nil
	}
	return json.Unmarshal(b, p)
}

func jsonFieldNames(v any) map[string]bool {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		if name != "" && name != "-" {
			names[name] = true
		}
	}
	return names
}

// RecordFilter drives the operator record list.
type RecordFilter struct {
	Module    Module
	Status    RecordStatus
	District  string
	SchoolID  string
	CreatedBy string
	From      *Date
	To        *Date
	Limit     int
	Offset    int
}

// AggregationFilter is the read used by the aggregation engine.
type AggregationFilter struct {
	Range    DateRange
	Statuses []RecordStatus
}

// Actor is the authenticated caller as forwarded by the gateway.
type Actor struct {
	UserID string
	Role   Role
}
