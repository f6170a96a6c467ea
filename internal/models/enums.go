package models

import "strings"

type Module string

const (
	ModuleTraining   Module = "training"
	ModuleVisit      Module = "visit"
	ModuleAssessment Module = "assessment"
	ModuleStory      Module = "story"
)

var AllModules = []Module{ModuleTraining, ModuleVisit, ModuleAssessment, ModuleStory}

func (m Module) IsValid() bool {
	switch m {
	case ModuleTraining, ModuleVisit, ModuleAssessment, ModuleStory:
		return true
	}
	return false
}

type RecordStatus string

const (
	RecordStatusDraft     RecordStatus = "Draft"
	RecordStatusSubmitted RecordStatus = "Submitted"
	RecordStatusReturned  RecordStatus = "Returned"
	RecordStatusApproved  RecordStatus = "Approved"
)

// ReportableStatuses are the only statuses that contribute to aggregates.
var ReportableStatuses = []RecordStatus{RecordStatusSubmitted, RecordStatusApproved}

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusDraft, RecordStatusSubmitted, RecordStatusReturned, RecordStatusApproved:
		return true
	}
	return false
}

func (s RecordStatus) IsReportable() bool {
	return s == RecordStatusSubmitted || s == RecordStatusApproved
}

type GeoLevel string

const (
	GeoLevelCountry   GeoLevel = "country"
	GeoLevelRegion    GeoLevel = "region"
	GeoLevelSubRegion GeoLevel = "subregion"
	GeoLevelDistrict  GeoLevel = "district"
	GeoLevelSchool    GeoLevel = "school"
)

func (l GeoLevel) IsValid() bool {
	switch l {
	case GeoLevelCountry, GeoLevelRegion, GeoLevelSubRegion, GeoLevelDistrict, GeoLevelSchool:
		return true
	}
	return false
}

// ParseGeoLevel accepts the canonical names plus the "sub-region" and
// "sub_region" spellings used by older dashboards.
func ParseGeoLevel(raw string) (GeoLevel, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	l := GeoLevel(s)
	if s == "" {
		l = GeoLevelCountry
	}
	return l, l.IsValid()
}

type Period string

const (
	PeriodFiscalYear Period = "FY"
	PeriodTerm       Period = "TERM"
	PeriodQuarter    Period = "QTR"
)

func (p Period) IsValid() bool {
	switch p {
	case PeriodFiscalYear, PeriodTerm, PeriodQuarter:
		return true
	}
	return false
}

func ParsePeriod(raw string) (Period, bool) {
	p := Period(strings.ToUpper(strings.TrimSpace(raw)))
	if p == "" {
		p = PeriodFiscalYear
	}
	return p, p.IsValid()
}

type AssessmentCycle string

const (
	CycleBaseline AssessmentCycle = "baseline"
	CycleProgress AssessmentCycle = "progress"
	CycleEndline  AssessmentCycle = "endline"
)

// LatestCycleOrder lists cycles from most to least recent.
var LatestCycleOrder = []AssessmentCycle{CycleEndline, CycleProgress, CycleBaseline}

func (c AssessmentCycle) IsValid() bool {
	switch c {
	case CycleBaseline, CycleProgress, CycleEndline:
		return true
	}
	return false
}

func ParseAssessmentCycle(raw string) (AssessmentCycle, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "midline", "mid-line", "progress check":
		s = string(CycleProgress)
	case "end-line", "end line":
		s = string(CycleEndline)
	case "base-line", "base line":
		s = string(CycleBaseline)
	}
	c := AssessmentCycle(s)
	return c, c.IsValid()
}

type FluencyLevel string

const (
	FluencyUnclassified FluencyLevel = ""
	FluencyNonReader    FluencyLevel = "Non-Reader"
	FluencyEmerging     FluencyLevel = "Emerging Reader"
	FluencyDeveloping   FluencyLevel = "Developing Reader"
	FluencyTransitional FluencyLevel = "Transitional Reader"
	FluencyFluent       FluencyLevel = "Fluent Reader"
)

// FluencyLevels is ordered from lowest to highest band.
var FluencyLevels = []FluencyLevel{
	FluencyNonReader,
	FluencyEmerging,
	FluencyDeveloping,
	FluencyTransitional,
	FluencyFluent,
}

// ParseFluencyLevel matches a stored level string, tolerating case and the
// "Non Reader"/"NonReader" variants seen in older form submissions.
func ParseFluencyLevel(raw string) FluencyLevel {
	key := strings.ToLower(strings.NewReplacer("-", "", " ", "", "_", "").Replace(raw))
	for _, l := range FluencyLevels {
		if strings.ToLower(strings.NewReplacer("-", "", " ", "").Replace(string(l))) == key {
			return l
		}
	}
	return FluencyUnclassified
}

type EgraDomain string

const (
	DomainLetterNames   EgraDomain = "letterNames"
	DomainLetterSounds  EgraDomain = "letterSounds"
	DomainRealWords     EgraDomain = "realWords"
	DomainMadeUpWords   EgraDomain = "madeUpWords"
	DomainStoryReading  EgraDomain = "storyReading"
	DomainComprehension EgraDomain = "comprehension"
)

var AllDomains = []EgraDomain{
	DomainLetterNames,
	DomainLetterSounds,
	DomainRealWords,
	DomainMadeUpWords,
	DomainStoryReading,
	DomainComprehension,
}

type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = ""
)

func ParseSex(raw string) Sex {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "boy", "man":
		return SexMale
	case "f", "female", "girl", "woman":
		return SexFemale
	}
	return SexUnknown
}

type Role string

const (
	RoleStaff      Role = "Staff"
	RoleVolunteer  Role = "Volunteer"
	RoleSupervisor Role = "Supervisor"
	RoleME         Role = "M&E"
	RoleAdmin      Role = "Admin"
)

func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "supervisor":
		return RoleSupervisor
	case "m&e", "me", "m_and_e", "monitoring":
		return RoleME
	case "admin":
		return RoleAdmin
	case "volunteer":
		return RoleVolunteer
	case "staff":
		return RoleStaff
	}
	return ""
}

// IsReviewer reports whether the role may approve or return records.
func (r Role) IsReviewer() bool {
	return r == RoleSupervisor || r == RoleME || r == RoleAdmin
}

type DataCompleteness string

const (
	DataComplete DataCompleteness = "Complete"
	DataPartial  DataCompleteness = "Partial"
)

type FidelityBand string

const (
	FidelityStrong   FidelityBand = "Strong"
	FidelityModerate FidelityBand = "Moderate"
	FidelityEmerging FidelityBand = "Emerging"
	FidelityWeak     FidelityBand = "Weak"
	FidelityNoData   FidelityBand = "No data"
)
