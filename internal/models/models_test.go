package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// ============================================================================
// FLEX NUMBER
// ============================================================================

func TestFlexNumber_UnmarshalVariants(t *testing.T) {
	var row struct {
		A FlexNumber `json:"a"`
		B FlexNumber `json:"b"`
		C FlexNumber `json:"c"`
		D FlexNumber `json:"d"`
		E FlexNumber `json:"e"`
		F FlexNumber `json:"f"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"7.5","c":"","d":null,"e":"abc","f":true}`), &row))

	v, ok := row.A.Float()
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)

	v, ok = row.B.Float()
	assert.True(t, ok)
	assert.Equal(t, 7.5, v)

	assert.True(t, row.C.IsBlank())
	assert.True(t, row.D.IsBlank())
	assert.False(t, row.C.IsMalformed())

	_, ok = row.E.Float()
	assert.False(t, ok)
	assert.True(t, row.E.IsMalformed())
	assert.True(t, row.F.IsMalformed())
}

func TestFlexNumber_ZeroIsNotBlank(t *testing.T) {
	n := NewFlexNumber(0)
	assert.False(t, n.IsBlank())
	v, ok := n.Float()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestFlexNumber_RejectsNaNAndNegatives(t *testing.T) {
	_, ok := FlexNumberFromString("NaN").Float()
	assert.False(t, ok)

	_, ok = FlexNumberFromString("-3").NonNegative()
	assert.False(t, ok)
	assert.True(t, FlexNumberFromString("-3").IsMalformed())
}

func TestFlexNumber_Marshal(t *testing.T) {
	b, err := json.Marshal(struct {
		X FlexNumber `json:"x"`
		Y FlexNumber `json:"y"`
		Z FlexNumber `json:"z"`
	}{NewFlexNumber(3), FlexNumber{}, FlexNumberFromString("n/a")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":3,"y":null,"z":"n/a"}`, string(b))
}

// ============================================================================
// DATE
// ============================================================================

func TestDate_ParseAndScan(t *testing.T) {
	d, err := ParseDate("2025-09-14")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-14", d.String())

	d, err = ParseDate("2025-09-14T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-14", d.String())

	_, err = ParseDate("14/09/2025")
	assert.Error(t, err)

	var scanned Date
	require.NoError(t, scanned.Scan([]byte("2024-02-29")))
	assert.Equal(t, NewDate(2024, time.February, 29), scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())
}

func TestDateRange_ContainsIsInclusive(t *testing.T) {
	r := DateRange{From: NewDate(2025, 7, 1), To: NewDate(2026, 6, 30)}
	assert.True(t, r.Contains(NewDate(2025, 7, 1)))
	assert.True(t, r.Contains(NewDate(2026, 6, 30)))
	assert.False(t, r.Contains(NewDate(2026, 7, 1)))
}

// ============================================================================
// PAYLOAD UNION
// ============================================================================

func TestDecodePayload_KeepsUnknownFieldsInExtra(t *testing.T) {
	raw := json.RawMessage(`{"visitType":"coaching","observationScore":"72","photoCount":3}`)

	p, err := DecodePayload(ModuleVisit, raw)
	require.NoError(t, err)
	require.NotNil(t, p.Visit)
	assert.Nil(t, p.Training)
	assert.Equal(t, "coaching", p.Visit.VisitType)

	score, ok := p.Visit.ObservationScore.Float()
	assert.True(t, ok)
	assert.Equal(t, 72.0, score)
	assert.Equal(t, float64(3), p.Extra["photoCount"])
	assert.True(t, p.Matches(ModuleVisit))
	assert.False(t, p.Matches(ModuleTraining))
}

func TestDecodePayload_RejectsNonObject(t *testing.T) {
	_, err := DecodePayload(ModuleStory, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = DecodePayload(Module("sports"), nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestRecordPayload_ValueScanRoundTrip(t *testing.T) {
	p, err := DecodePayload(ModuleAssessment, json.RawMessage(`{"cycle":"baseline","learners":[{"sex":"F","storyReading":"30"}]}`))
	require.NoError(t, err)

	v, err := p.Value()
	require.NoError(t, err)

	var back RecordPayload
	require.NoError(t, back.Scan(v))
	require.NotNil(t, back.Assessment)
	require.Len(t, back.Assessment.Learners, 1)
	score, ok := back.Assessment.Learners[0].StoryReading.Float()
	assert.True(t, ok)
	assert.Equal(t, 30.0, score)
}

// ============================================================================
// REQUESTS
// ============================================================================

func TestSubmitRecordRequest_Validate(t *testing.T) {
	req := SubmitRecordRequest{
		Module:     ModuleTraining,
		Date:       "2025-08-01",
		District:   "Gulu",
		SchoolName: "Laroo Primary",
		Payload:    json.RawMessage(`{"maleTeachers":4,"femaleTeachers":6}`),
	}
	payload, err := req.Validate()
	require.NoError(t, err)
	require.NotNil(t, payload.Training)

	bad := SubmitRecordRequest{Module: "sports", Date: "01-08-2025", SchoolName: "  "}
	_, err = bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "module")
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "district")
	assert.Contains(t, verr.Fields, "schoolName")
}

func TestReviewRecordRequest_ReturnNeedsNote(t *testing.T) {
	req := ReviewRecordRequest{Status: RecordStatusReturned}
	assert.ErrorIs(t, req.Validate(), ErrValidation)

	req.Note = "Attendance sheet missing"
	assert.NoError(t, req.Validate())

	approve := ReviewRecordRequest{Status: RecordStatusApproved}
	assert.NoError(t, approve.Validate())
}

func TestCreateSchoolRequest_CoordinatesTogether(t *testing.T) {
	lat := 2.77
	req := CreateSchoolRequest{Name: "Pece Primary", District: "Gulu", Latitude: &lat}
	assert.ErrorIs(t, req.Validate(), ErrValidation)
}

// ============================================================================
// ENUMS & GEOMETRY
// ============================================================================

func TestParseHelpers(t *testing.T) {
	l, ok := ParseGeoLevel("Sub-Region")
	assert.True(t, ok)
	assert.Equal(t, GeoLevelSubRegion, l)

	l, ok = ParseGeoLevel("")
	assert.True(t, ok)
	assert.Equal(t, GeoLevelCountry, l)

	p, ok := ParsePeriod("qtr")
	assert.True(t, ok)
	assert.Equal(t, PeriodQuarter, p)

	c, ok := ParseAssessmentCycle("Midline")
	assert.True(t, ok)
	assert.Equal(t, CycleProgress, c)

	assert.Equal(t, FluencyNonReader, ParseFluencyLevel("non reader"))
	assert.Equal(t, FluencyUnclassified, ParseFluencyLevel("excellent"))
	assert.Equal(t, SexFemale, ParseSex("Girl"))
	assert.True(t, RoleME.IsReviewer())
	assert.False(t, RoleVolunteer.IsReviewer())
}

func TestGeoJSONPointAndExtent(t *testing.T) {
	p, err := NewGeoJSONPoint(2.78, 32.29)
	require.NoError(t, err)
	assert.Equal(t, "Point", p.Type)
	assert.Equal(t, []float64{32.29, 2.78}, p.Coordinates)

	_, err = NewGeoJSONPoint(120, 0)
	assert.Error(t, err)

	a, _ := p.Geom()
	q, _ := NewGeoJSONPoint(2.70, 32.39)
	b, _ := q.Geom()

	box, centre := Extent(nil)
	assert.Nil(t, box)
	assert.Nil(t, centre)

	gotBox, gotCentre := Extent([]*geom.Point{a, b})
	require.NotNil(t, gotBox)
	assert.InDelta(t, 32.29, gotBox.MinLng, 1e-9)
	assert.InDelta(t, 2.78, gotBox.MaxLat, 1e-9)
	assert.InDelta(t, 32.34, gotCentre.Coordinates[0], 1e-6)
	assert.InDelta(t, 2.74, gotCentre.Coordinates[1], 1e-6)
}
