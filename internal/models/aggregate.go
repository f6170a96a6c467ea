package models

import "time"

// ImpactAggregate is the uniform rollup for any scope and period. Every
// top-level key is always present; only leaf values may be null.
type ImpactAggregate struct {
	Scope     GeoScope                     `json:"scope"`
	Period    Period                       `json:"period"`
	KPIs      KPIs                         `json:"kpis"`
	Funnel    Funnel                       `json:"funnel"`
	Outcomes  map[EgraDomain]DomainOutcome `json:"outcomes"`
	Fidelity  Fidelity                     `json:"fidelity"`
	Meta      AggregateMeta                `json:"meta"`
	Navigator Navigator                    `json:"navigator"`
}

type KPIs struct {
	SchoolsSupported          int `json:"schoolsSupported"`
	TeachersSupportedMale     int `json:"teachersSupportedMale"`
	TeachersSupportedFemale   int `json:"teachersSupportedFemale"`
	TeachersSupportedTotal    int `json:"teachersSupportedTotal"`
	EnrollmentEstimatedReach  int `json:"enrollmentEstimatedReach"`
	LearnersAssessedUnique    int `json:"learnersAssessedUnique"`
	CoachingVisitsCompleted   int `json:"coachingVisitsCompleted"`
	AssessmentsBaselineCount  int `json:"assessmentsBaselineCount"`
	AssessmentsProgressCount  int `json:"assessmentsProgressCount"`
	AssessmentsEndlineCount   int `json:"assessmentsEndlineCount"`
	TrainingSessionsCompleted int `json:"trainingSessionsCompleted"`
	StoryActivitiesCompleted  int `json:"storyActivitiesCompleted"`
}

// Funnel counts distinct schools per implementation stage. Stages are
// counted independently; a school can be assessed without being trained.
type Funnel struct {
	Trained          int `json:"trained"`
	Coached          int `json:"coached"`
	BaselineAssessed int `json:"baselineAssessed"`
	EndlineAssessed  int `json:"endlineAssessed"`
	StoryActive      int `json:"storyActive"`
}

type FunnelStage struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stages lists the funnel in presentation order.
func (f Funnel) Stages() []FunnelStage {
	return []FunnelStage{
		{Key: "trained", Label: "Trained", Count: f.Trained},
		{Key: "coached", Label: "Coached / visited", Count: f.Coached},
		{Key: "baselineAssessed", Label: "Baseline assessed", Count: f.BaselineAssessed},
		{Key: "endlineAssessed", Label: "Endline assessed", Count: f.EndlineAssessed},
		{Key: "storyActive", Label: "Story active", Count: f.StoryActive},
	}
}

// DomainOutcome reports means for one EGRA domain. Nil means no data, which
// presentation layers must show as "not available" rather than zero.
type DomainOutcome struct {
	Baseline     *float64         `json:"baseline"`
	Latest       *float64         `json:"latest"`
	Endline      *float64         `json:"endline"`
	LatestCycle  *AssessmentCycle `json:"latestCycle"`
	N            int              `json:"n"`
	BaselineN    int              `json:"baselineN"`
	Delta        *float64         `json:"delta"`
	BenchmarkPct *float64         `json:"benchmarkPct"`
}

type FidelityDriver struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Score  *float64 `json:"score"`
	Weight float64  `json:"weight"`
}

type Fidelity struct {
	Score   *float64         `json:"score"`
	Band    FidelityBand     `json:"band"`
	Drivers []FidelityDriver `json:"drivers"`
}

type AggregateMeta struct {
	SampleSize       int              `json:"sampleSize"`
	DataCompleteness DataCompleteness `json:"dataCompleteness"`
	LastUpdated      *time.Time       `json:"lastUpdated"`
	FlaggedRecords   int              `json:"flaggedRecords"`
	SchoolsInScope   int              `json:"schoolsInScope"`
	ReportingSchools int              `json:"reportingSchools"`
	ExpectedModules  []Module         `json:"expectedModules"`
	From             Date             `json:"from"`
	To               Date             `json:"to"`
}

type NavItem struct {
	Level       GeoLevel      `json:"level"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	SchoolCount int           `json:"schoolCount"`
	Centroid    *GeoJSONPoint `json:"centroid"`
	Bounds      *BoundingBox  `json:"bounds"`
}

// Navigator lists drill-down choices. Regions is always the full list; the
// lower lists are filled down to the children of the current scope.
type Navigator struct {
	Breadcrumb []NavItem `json:"breadcrumb"`
	Regions    []NavItem `json:"regions"`
	SubRegions []NavItem `json:"subRegions"`
	Districts  []NavItem `json:"districts"`
	Schools    []NavItem `json:"schools"`
}

// EmptyNavigator returns a navigator with non-nil lists.
func EmptyNavigator() Navigator {
	return Navigator{
		Breadcrumb: []NavItem{},
		Regions:    []NavItem{},
		SubRegions: []NavItem{},
		Districts:  []NavItem{},
		Schools:    []NavItem{},
	}
}

// FactPack is the numeric summary handed to the external narrative step.
// It carries no free text and no individual-level values.
type FactPack struct {
	Scope        GeoScope                     `json:"scope"`
	Period       Period                       `json:"period"`
	From         Date                         `json:"from"`
	To           Date                         `json:"to"`
	KPIs         KPIs                         `json:"kpis"`
	Funnel       []FunnelStage                `json:"funnel"`
	Outcomes     map[EgraDomain]DomainOutcome `json:"outcomes"`
	Fidelity     Fidelity                     `json:"fidelity"`
	Completeness DataCompleteness             `json:"dataCompleteness"`
	SampleSize   int                          `json:"sampleSize"`
	GeneratedAt  time.Time                    `json:"generatedAt"`
}
