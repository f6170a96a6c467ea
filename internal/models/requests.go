package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct runs the tag rules and converts failures to a
// ValidationError keyed by JSON field name.
func validateStruct(s any) *ValidationError {
	verr := NewValidationError()
	err := validate.Struct(s)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("_", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

type SubmitRecordRequest struct {
	Module       Module          `json:"module" validate:"required,oneof=training visit assessment story"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	District     string          `json:"district" validate:"notblank,max=100"`
	SchoolID     string          `json:"schoolId" validate:"max=32"`
	SchoolName   string          `json:"schoolName" validate:"notblank,max=200"`
	ProgramType  string          `json:"programType" validate:"max=100"`
	FollowUpDate string          `json:"followUpDate" validate:"omitempty,datetime=2006-01-02"`
	Status       RecordStatus    `json:"status" validate:"omitempty,oneof=Draft Submitted"`
	Payload      json.RawMessage `json:"payload"`
}

// Validate checks field shapes and decodes the module payload. The decoded
// payload is returned so callers do not parse it twice.
func (r *SubmitRecordRequest) Validate() (RecordPayload, error) {
	verr := validateStruct(r)
	payload, err := DecodePayload(r.Module, r.Payload)
	if err != nil && r.Module.IsValid() {
		verr.Add("payload", err.Error())
	}
	return payload, verr.OrNil()
}

type UpdateRecordRequest = SubmitRecordRequest

type ReviewRecordRequest struct {
	Status RecordStatus `json:"status" validate:"required,oneof=Approved Returned"`
	Note   string       `json:"note" validate:"max=2000"`
}

func (r *ReviewRecordRequest) Validate() error {
	verr := validateStruct(r)
	if r.Status == RecordStatusReturned && strings.TrimSpace(r.Note) == "" {
		verr.Add("note", "is required when returning a record")
	}
	return verr.OrNil()
}

type CreateSchoolRequest struct {
	Name              string   `json:"name" yaml:"name" validate:"notblank,max=200"`
	District          string   `json:"district" yaml:"district" validate:"notblank,max=100"`
	SubCounty         string   `json:"subCounty" yaml:"subCounty" validate:"max=100"`
	Parish            string   `json:"parish" yaml:"parish" validate:"max=100"`
	Village           string   `json:"village" yaml:"village" validate:"max=100"`
	Latitude          *float64 `json:"latitude" yaml:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude         *float64 `json:"longitude" yaml:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CurrentEnrollment int      `json:"currentEnrollment" yaml:"currentEnrollment" validate:"gte=0"`
}

func (r *CreateSchoolRequest) Validate() error {
	verr := validateStruct(r)
	if (r.Latitude == nil) != (r.Longitude == nil) {
		verr.Add("latitude", "latitude and longitude must be given together")
	}
	return verr.OrNil()
}

type EgraSummarizeRequest struct {
	Cycle string           `json:"cycle" validate:"omitempty,oneof=baseline progress endline"`
	Rows  []EgraLearnerRow `json:"rows" validate:"max=500"`
}

func (r *EgraSummarizeRequest) Validate() error {
	return validateStruct(r).OrNil()
}

type PublishFactPackRequest struct {
	Level  string `json:"level" validate:"required"`
	ID     string `json:"id"`
	Period string `json:"period" validate:"omitempty,oneof=FY TERM QTR"`
}

func (r *PublishFactPackRequest) Validate() error {
	verr := validateStruct(r)
	if level, ok := ParseGeoLevel(r.Level); !ok {
		verr.Add("level", "must be one of: country region subregion district school")
	} else if level != GeoLevelCountry && strings.TrimSpace(r.ID) == "" {
		verr.Add("id", "is required below country level")
	}
	return verr.OrNil()
}
