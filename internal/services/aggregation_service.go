package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/models"

	"github.com/twpayne/go-geom"
)

// RecordReader is the read side of the record store used by the engine.
type RecordReader interface {
	ListForAggregation(ctx context.Context, filter models.AggregationFilter) ([]models.RawRecord, error)
}

// SchoolLister is the read side of the school directory.
type SchoolLister interface {
	ListAll(ctx context.Context) ([]models.School, error)
}

// AggregationService rolls raw records up to any geographic scope. It never
// writes and holds no per-request state, so one instance serves concurrent
// callers.
type AggregationService struct {
	records RecordReader
	schools SchoolLister
	geo     *GeographyResolver
	periods PeriodResolver
	scorer  *EgraScorer
	cfg     config.EngineConfig
}

func NewAggregationService(
	records RecordReader,
	schools SchoolLister,
	geo *GeographyResolver,
	periods PeriodResolver,
	scorer *EgraScorer,
	cfg config.EngineConfig,
) *AggregationService {
	if cfg.ObservationMax <= 0 {
		cfg.ObservationMax = 4
	}
	return &AggregationService{
		records: records,
		schools: schools,
		geo:     geo,
		periods: periods,
		scorer:  scorer,
		cfg:     cfg,
	}
}

func (s *AggregationService) Geography() *GeographyResolver { return s.geo }

// ResolvePeriod exposes the configured period mapping.
func (s *AggregationService) ResolvePeriod(period models.Period) (models.DateRange, error) {
	return s.periods.Resolve(period)
}

// ValidateScope reports ErrUnknownScope for ids that are not in the
// geography table or the school directory. Public callers use Aggregate,
// which degrades to an empty aggregate instead.
func (s *AggregationService) ValidateScope(ctx context.Context, scope models.GeoScope) error {
	canonical, ok := s.geo.CanonicalScope(scope)
	if !ok {
		return fmt.Errorf("%w: %s %q", models.ErrUnknownScope, scope.Level, scope.ID)
	}
	if canonical.Level != models.GeoLevelSchool {
		return nil
	}
	schools, err := s.fetchSchools(ctx)
	if err != nil {
		return err
	}
	for _, school := range schools {
		if strings.EqualFold(school.ID, canonical.ID) {
			return nil
		}
	}
	return fmt.Errorf("%w: school %q", models.ErrUnknownScope, scope.ID)
}

// Aggregate computes the rollup for scope and period. Unknown scopes yield
// a zeroed aggregate. Store failures return ErrStoreUnavailable and no
// aggregate at all.
func (s *AggregationService) Aggregate(ctx context.Context, scope models.GeoScope, period models.Period) (*models.ImpactAggregate, error) {
	dateRange, err := s.periods.Resolve(period)
	if err != nil {
		return nil, err
	}

	canonical, known := s.geo.CanonicalScope(scope)
	if !known {
		canonical = scope
	}

	schools, err := s.fetchSchools(ctx)
	if err != nil {
		return nil, err
	}
	dir := newSchoolIndex(schools, s.geo)

	if known && canonical.Level == models.GeoLevelSchool {
		school, ok := dir.byID[canonical.ID]
		known = ok
		if ok {
			canonical.ID = school.ID
		}
	}

	if !known {
		slog.Info("aggregate requested for unknown scope", "level", scope.Level, "id", scope.ID)
		agg := s.emptyAggregate(scope, period, dateRange)
		agg.Navigator = s.buildNavigator(models.GeoScope{Level: models.GeoLevelCountry, ID: s.geo.Country()}, dir)
		agg.Navigator.Breadcrumb = []models.NavItem{s.countryItem(dir)}
		return agg, nil
	}

	records, err := s.fetchRecords(ctx, dateRange)
	if err != nil {
		return nil, err
	}

	agg := s.compute(canonical, period, dateRange, dir, records)
	agg.Navigator = s.buildNavigator(canonical, dir)
	return agg, nil
}

func (s *AggregationService) fetchSchools(ctx context.Context) ([]models.School, error) {
	fetchCtx, cancel := s.storeContext(ctx)
	defer cancel()
	schools, err := s.schools.ListAll(fetchCtx)
	if err != nil {
		slog.Error("failed to load school directory", "error", err)
		return nil, storeUnavailable(err)
	}
	return schools, nil
}

func (s *AggregationService) fetchRecords(ctx context.Context, dateRange models.DateRange) ([]models.RawRecord, error) {
	fetchCtx, cancel := s.storeContext(ctx)
	defer cancel()
	records, err := s.records.ListForAggregation(fetchCtx, models.AggregationFilter{
		Range:    dateRange,
		Statuses: models.ReportableStatuses,
	})
	if err != nil {
		slog.Error("failed to load records for aggregation",
			"from", dateRange.From.String(), "to", dateRange.To.String(), "error", err)
		return nil, storeUnavailable(err)
	}
	if err := fetchCtx.Err(); err != nil {
		return nil, storeUnavailable(err)
	}
	return records, nil
}

func (s *AggregationService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func storeUnavailable(err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// ============================================================================
// SCHOOL INDEX
// ============================================================================

type schoolIndex struct {
	byID     map[string]models.School
	byName   map[string]string // name|district key -> school id
	placeOf  map[string]models.DistrictRef
	allOrder []models.School
}

func newSchoolIndex(schools []models.School, geo *GeographyResolver) *schoolIndex {
	idx := &schoolIndex{
		byID:    make(map[string]models.School, len(schools)),
		byName:  make(map[string]string, len(schools)),
		placeOf: make(map[string]models.DistrictRef, len(schools)),
	}
	sorted := append([]models.School(nil), schools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, school := range sorted {
		id := strings.ToUpper(school.ID)
		school.ID = id
		idx.byID[id] = school
		ref := geo.Place(school.District)
		idx.placeOf[id] = ref
		key := schoolNameKey(school.Name, ref.District)
		if _, exists := idx.byName[key]; !exists {
			idx.byName[key] = id
		}
		idx.allOrder = append(idx.allOrder, school)
	}
	return idx
}

func schoolNameKey(name, district string) string {
	return models.NameKey(name) + "|" + NormalizePlaceName(district)
}

// ============================================================================
// COMPUTATION
// ============================================================================

type schoolState struct {
	key        string
	directory  *models.School
	modules    map[models.Module]bool
	cycles     map[models.AssessmentCycle]bool
	enrollment *enrollmentReport
}

type enrollmentReport struct {
	value   int
	date    models.Date
	updated int64
	id      string
}

func (e *enrollmentReport) newerThan(o *enrollmentReport) bool {
	if o == nil {
		return true
	}
	if !e.date.Equal(o.date.Time) {
		return e.date.After(o.date)
	}
	if e.updated != o.updated {
		return e.updated > o.updated
	}
	return e.id > o.id
}

type domainAccumulator struct {
	sum  float64
	n    int
	hits int
}

type aggregationRun struct {
	svc     *AggregationService
	scope   models.GeoScope
	dir     *schoolIndex
	schools map[string]*schoolState
	flagged map[string]bool

	kpis        models.KPIs
	learners    map[string]bool
	outcomes    map[models.AssessmentCycle]map[models.EgraDomain]*domainAccumulator
	quality     []float64
	sampleSize  int
	lastUpdated int64
}

func (s *AggregationService) compute(
	scope models.GeoScope,
	period models.Period,
	dateRange models.DateRange,
	dir *schoolIndex,
	records []models.RawRecord,
) *models.ImpactAggregate {
	run := &aggregationRun{
		svc:      s,
		scope:    scope,
		dir:      dir,
		schools:  map[string]*schoolState{},
		flagged:  map[string]bool{},
		learners: map[string]bool{},
		outcomes: map[models.AssessmentCycle]map[models.EgraDomain]*domainAccumulator{},
	}

	// directory schools in scope are expected to report even with no records
	for _, school := range dir.allOrder {
		if run.schoolInScope(school.ID, dir.placeOf[school.ID]) {
			sc := school
			run.schools[school.ID] = &schoolState{
				key:       school.ID,
				directory: &sc,
				modules:   map[models.Module]bool{},
				cycles:    map[models.AssessmentCycle]bool{},
			}
		}
	}

	sorted := append([]models.RawRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ActivityDate.Equal(sorted[j].ActivityDate.Time) {
			return sorted[i].ActivityDate.Before(sorted[j].ActivityDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for i := range sorted {
		rec := &sorted[i]
		// the store filters too; reportable status is re-checked here because
		// drafts leaking into public numbers would be a correctness bug
		if !rec.Status.IsReportable() || !dateRange.Contains(rec.ActivityDate) {
			continue
		}
		key, ref := run.locate(rec)
		if !run.schoolInScope(key, ref) {
			continue
		}
		run.add(key, rec)
	}

	agg := s.emptyAggregate(scope, period, dateRange)
	run.finish(agg)
	return agg
}

// locate maps a record to a school key and its placement. Records for
// schools missing from the directory are grouped by name and district.
func (r *aggregationRun) locate(rec *models.RawRecord) (string, models.DistrictRef) {
	if rec.SchoolID != nil {
		id := strings.ToUpper(strings.TrimSpace(*rec.SchoolID))
		if _, ok := r.dir.byID[id]; ok {
			return id, r.dir.placeOf[id]
		}
	}
	ref := r.svc.geo.Place(rec.District)
	if id, ok := r.dir.byName[schoolNameKey(rec.SchoolName, ref.District)]; ok {
		return id, r.dir.placeOf[id]
	}
	return "adhoc:" + schoolNameKey(rec.SchoolName, ref.District), ref
}

func (r *aggregationRun) schoolInScope(key string, ref models.DistrictRef) bool {
	if r.scope.Level == models.GeoLevelSchool {
		return key == r.scope.ID
	}
	return r.svc.geo.Contains(r.scope, ref)
}

func (r *aggregationRun) flag(rec *models.RawRecord, metric string, detail any) {
	r.flagged[rec.ID] = true
	slog.Warn("skipping malformed payload value",
		"record_id", rec.ID,
		"module", rec.Module,
		"metric", metric,
		"value", detail,
	)
}

func (r *aggregationRun) add(key string, rec *models.RawRecord) {
	if !rec.Payload.Matches(rec.Module) {
		r.flag(rec, "payload", rec.Module)
		return
	}

	st, ok := r.schools[key]
	if !ok {
		st = &schoolState{
			key:     key,
			modules: map[models.Module]bool{},
			cycles:  map[models.AssessmentCycle]bool{},
		}
		r.schools[key] = st
	}

	st.modules[rec.Module] = true
	r.sampleSize++
	if rec.UpdatedAt > r.lastUpdated {
		r.lastUpdated = rec.UpdatedAt
	}
	r.trackEnrollment(st, rec)

	switch rec.Module {
	case models.ModuleTraining:
		r.addTraining(rec)
	case models.ModuleVisit:
		r.addVisit(rec)
	case models.ModuleAssessment:
		r.addAssessment(st, rec)
	case models.ModuleStory:
		r.kpis.StoryActivitiesCompleted++
	}
}

func (r *aggregationRun) trackEnrollment(st *schoolState, rec *models.RawRecord) {
	raw := rec.Payload.ReportedEnrollment()
	if raw.IsBlank() {
		return
	}
	v, ok := raw.Count()
	if !ok {
		r.flag(rec, "currentEnrollment", raw.Raw())
		return
	}
	report := &enrollmentReport{value: v, date: rec.ActivityDate, updated: rec.UpdatedAt, id: rec.ID}
	if report.newerThan(st.enrollment) {
		st.enrollment = report
	}
}

func (r *aggregationRun) addTraining(rec *models.RawRecord) {
	r.kpis.TrainingSessionsCompleted++
	p := rec.Payload.Training
	if len(p.Participants) > 0 {
		for _, participant := range p.Participants {
			switch models.ParseSex(participant.Sex) {
			case models.SexMale:
				r.kpis.TeachersSupportedMale++
			case models.SexFemale:
				r.kpis.TeachersSupportedFemale++
			}
		}
		return
	}
	if v, ok := p.MaleTeachers.Count(); ok {
		r.kpis.TeachersSupportedMale += v
	} else if p.MaleTeachers.IsMalformed() {
		r.flag(rec, "maleTeachers", p.MaleTeachers.Raw())
	}
	if v, ok := p.FemaleTeachers.Count(); ok {
		r.kpis.TeachersSupportedFemale += v
	} else if p.FemaleTeachers.IsMalformed() {
		r.flag(rec, "femaleTeachers", p.FemaleTeachers.Raw())
	}
}

func (r *aggregationRun) addVisit(rec *models.RawRecord) {
	r.kpis.CoachingVisitsCompleted++
	p := rec.Payload.Visit

	if score, ok := p.ObservationScore.NonNegative(); ok && score <= 100 {
		r.quality = append(r.quality, score)
		return
	} else if !p.ObservationScore.IsBlank() {
		r.flag(rec, "observationScore", p.ObservationScore.Raw())
	}

	if len(p.ObservationRatings) == 0 {
		return
	}
	sum, n := 0.0, 0
	for _, rating := range p.ObservationRatings {
		v, ok := rating.NonNegative()
		if !ok || v > r.svc.cfg.ObservationMax {
			if !rating.IsBlank() {
				r.flag(rec, "observationRatings", rating.Raw())
			}
			continue
		}
		sum += v
		n++
	}
	if n > 0 {
		r.quality = append(r.quality, sum/float64(n)/r.svc.cfg.ObservationMax*100)
	}
}

func (r *aggregationRun) addAssessment(st *schoolState, rec *models.RawRecord) {
	p := rec.Payload.Assessment
	cycle, cycleOK := models.ParseAssessmentCycle(p.Cycle)
	if !cycleOK {
		r.flag(rec, "cycle", p.Cycle)
	} else {
		st.cycles[cycle] = true
		switch cycle {
		case models.CycleBaseline:
			r.kpis.AssessmentsBaselineCount++
		case models.CycleProgress:
			r.kpis.AssessmentsProgressCount++
		case models.CycleEndline:
			r.kpis.AssessmentsEndlineCount++
		}
	}

	for i, row := range p.Learners {
		if !row.IsActive() {
			continue
		}
		if id := strings.ToLower(strings.TrimSpace(row.LearnerID)); id != "" {
			r.learners[st.key+"|"+id] = true
		} else {
			r.learners["row:"+rec.ID+":"+strconv.Itoa(i)] = true
		}

		if !cycleOK {
			continue
		}
		for _, d := range models.AllDomains {
			raw := row.Score(d)
			v, ok := raw.NonNegative()
			if !ok {
				if raw.IsMalformed() {
					r.flag(rec, string(d), raw.Raw())
				}
				continue
			}
			acc := r.accumulator(cycle, d)
			acc.sum += v
			acc.n++
			if bench, ok := r.svc.cfg.Benchmarks[string(d)]; ok && v >= bench {
				acc.hits++
			}
		}
	}
}

func (r *aggregationRun) accumulator(cycle models.AssessmentCycle, d models.EgraDomain) *domainAccumulator {
	byDomain, ok := r.outcomes[cycle]
	if !ok {
		byDomain = map[models.EgraDomain]*domainAccumulator{}
		r.outcomes[cycle] = byDomain
	}
	acc, ok := byDomain[d]
	if !ok {
		acc = &domainAccumulator{}
		byDomain[d] = acc
	}
	return acc
}

func (r *aggregationRun) finish(agg *models.ImpactAggregate) {
	var funnel models.Funnel
	enrollment := 0
	reporting := 0
	for _, st := range r.schools {
		if len(st.modules) == 0 {
			continue
		}
		reporting++
		if st.modules[models.ModuleTraining] {
			funnel.Trained++
		}
		if st.modules[models.ModuleVisit] {
			funnel.Coached++
		}
		if st.cycles[models.CycleBaseline] {
			funnel.BaselineAssessed++
		}
		if st.cycles[models.CycleEndline] {
			funnel.EndlineAssessed++
		}
		if st.modules[models.ModuleStory] {
			funnel.StoryActive++
		}
		switch {
		case st.enrollment != nil:
			enrollment += st.enrollment.value
		case st.directory != nil:
			enrollment += st.directory.CurrentEnrollment
		}
	}

	r.kpis.SchoolsSupported = reporting
	r.kpis.TeachersSupportedTotal = r.kpis.TeachersSupportedMale + r.kpis.TeachersSupportedFemale
	r.kpis.EnrollmentEstimatedReach = enrollment
	r.kpis.LearnersAssessedUnique = len(r.learners)

	agg.KPIs = r.kpis
	agg.Funnel = funnel
	agg.Outcomes = r.buildOutcomes()
	agg.Fidelity = r.buildFidelity(funnel)

	agg.Meta.SampleSize = r.sampleSize
	agg.Meta.FlaggedRecords = len(r.flagged)
	agg.Meta.SchoolsInScope = len(r.schools)
	agg.Meta.ReportingSchools = reporting
	agg.Meta.DataCompleteness = r.completeness(agg.Meta.ExpectedModules)
	if r.lastUpdated > 0 {
		t := time.Unix(r.lastUpdated, 0).UTC()
		agg.Meta.LastUpdated = &t
	}
}

func (r *aggregationRun) buildOutcomes() map[models.EgraDomain]models.DomainOutcome {
	out := emptyOutcomes()
	for _, d := range models.AllDomains {
		var o models.DomainOutcome
		if acc := r.outcomes[models.CycleBaseline][d]; acc != nil && acc.n > 0 {
			o.Baseline = ptr(round1(acc.sum / float64(acc.n)))
			o.BaselineN = acc.n
		}
		if acc := r.outcomes[models.CycleEndline][d]; acc != nil && acc.n > 0 {
			o.Endline = ptr(round1(acc.sum / float64(acc.n)))
		}
		for _, cycle := range models.LatestCycleOrder {
			acc := r.outcomes[cycle][d]
			if acc == nil || acc.n == 0 {
				continue
			}
			c := cycle
			o.Latest = ptr(round1(acc.sum / float64(acc.n)))
			o.LatestCycle = &c
			o.N = acc.n
			if _, ok := r.svc.cfg.Benchmarks[string(d)]; ok {
				o.BenchmarkPct = ptr(clampPct(round1(float64(acc.hits) / float64(acc.n) * 100)))
			}
			break
		}
		if o.Baseline != nil && o.Latest != nil && *o.LatestCycle != models.CycleBaseline {
			o.Delta = ptr(round1(*o.Latest - *o.Baseline))
		}
		out[d] = o
	}
	return out
}

func (r *aggregationRun) buildFidelity(funnel models.Funnel) models.Fidelity {
	weights := r.svc.cfg.FidelityWeights
	inScope := len(r.schools)

	var coverage, compliance, quality *float64
	if inScope > 0 {
		coverage = ptr(clampPct(round1(float64(funnel.Coached) / float64(inScope) * 100)))
		both := 0
		for _, st := range r.schools {
			if st.cycles[models.CycleBaseline] && st.cycles[models.CycleEndline] {
				both++
			}
		}
		compliance = ptr(clampPct(round1(float64(both) / float64(inScope) * 100)))
	}
	if len(r.quality) > 0 {
		sum := 0.0
		for _, q := range r.quality {
			sum += q
		}
		quality = ptr(clampPct(round1(sum / float64(len(r.quality)))))
	}

	drivers := []models.FidelityDriver{
		{Key: "coachingCoverage", Label: "Coaching coverage", Score: coverage, Weight: weights.CoachingCoverage},
		{Key: "assessmentCompliance", Label: "Assessment compliance", Score: compliance, Weight: weights.AssessmentCompliance},
		{Key: "teachingQuality", Label: "Observed teaching quality", Score: quality, Weight: weights.TeachingQuality},
	}
	return composeFidelity(drivers)
}

// composeFidelity weights the drivers that have data, renormalising the
// weights over those drivers.
func composeFidelity(drivers []models.FidelityDriver) models.Fidelity {
	sum, weight := 0.0, 0.0
	for _, d := range drivers {
		if d.Score == nil || d.Weight <= 0 {
			continue
		}
		sum += *d.Score * d.Weight
		weight += d.Weight
	}
	f := models.Fidelity{Band: models.FidelityNoData, Drivers: drivers}
	if weight == 0 {
		return f
	}
	score := clampPct(round1(sum / weight))
	f.Score = &score
	f.Band = fidelityBand(score)
	return f
}

func fidelityBand(score float64) models.FidelityBand {
	switch {
	case score >= 80:
		return models.FidelityStrong
	case score >= 60:
		return models.FidelityModerate
	case score >= 40:
		return models.FidelityEmerging
	}
	return models.FidelityWeak
}

func (r *aggregationRun) completeness(expected []models.Module) models.DataCompleteness {
	if len(r.schools) == 0 {
		return models.DataPartial
	}
	for _, st := range r.schools {
		if len(st.modules) == 0 {
			return models.DataPartial
		}
		for _, m := range expected {
			if !st.modules[m] {
				return models.DataPartial
			}
		}
	}
	return models.DataComplete
}

// ============================================================================
// SHAPE
// ============================================================================

func (s *AggregationService) expectedModules(period models.Period) []models.Module {
	configured := map[models.Module]bool{}
	for _, raw := range s.cfg.ExpectedModules[string(period)] {
		m := models.Module(strings.ToLower(strings.TrimSpace(raw)))
		if m.IsValid() {
			configured[m] = true
		}
	}
	out := []models.Module{}
	for _, m := range models.AllModules {
		if configured[m] {
			out = append(out, m)
		}
	}
	return out
}

// emptyAggregate is the fully shaped zero value for scope and period.
func (s *AggregationService) emptyAggregate(scope models.GeoScope, period models.Period, dateRange models.DateRange) *models.ImpactAggregate {
	return &models.ImpactAggregate{
		Scope:    scope,
		Period:   period,
		Outcomes: emptyOutcomes(),
		Fidelity: composeFidelity([]models.FidelityDriver{
			{Key: "coachingCoverage", Label: "Coaching coverage", Weight: s.cfg.FidelityWeights.CoachingCoverage},
			{Key: "assessmentCompliance", Label: "Assessment compliance", Weight: s.cfg.FidelityWeights.AssessmentCompliance},
			{Key: "teachingQuality", Label: "Observed teaching quality", Weight: s.cfg.FidelityWeights.TeachingQuality},
		}),
		Meta: models.AggregateMeta{
			DataCompleteness: models.DataPartial,
			ExpectedModules:  s.expectedModules(period),
			From:             dateRange.From,
			To:               dateRange.To,
		},
		Navigator: models.EmptyNavigator(),
	}
}

func emptyOutcomes() map[models.EgraDomain]models.DomainOutcome {
	out := make(map[models.EgraDomain]models.DomainOutcome, len(models.AllDomains))
	for _, d := range models.AllDomains {
		out[d] = models.DomainOutcome{}
	}
	return out
}

// ============================================================================
// NAVIGATOR
// ============================================================================

func (s *AggregationService) buildNavigator(scope models.GeoScope, dir *schoolIndex) models.Navigator {
	nav := models.EmptyNavigator()

	var region, subRegion, district string
	var school *models.School
	switch scope.Level {
	case models.GeoLevelRegion:
		region = scope.ID
	case models.GeoLevelSubRegion:
		subRegion = scope.ID
		region, _ = s.geo.RegionOfSubRegion(subRegion)
	case models.GeoLevelDistrict:
		district = scope.ID
		ref, _ := s.geo.ResolveDistrict(district)
		subRegion, region = ref.SubRegion, ref.Region
	case models.GeoLevelSchool:
		if sc, ok := dir.byID[scope.ID]; ok {
			school = &sc
			ref := dir.placeOf[sc.ID]
			region, subRegion = ref.Region, ref.SubRegion
			if ref.Known {
				district = ref.District
			}
		}
	}

	nav.Breadcrumb = append(nav.Breadcrumb, s.countryItem(dir))
	for _, name := range s.geo.Regions() {
		nav.Regions = append(nav.Regions, s.navItem(models.GeoLevelRegion, name, dir))
	}
	if region != "" {
		nav.Breadcrumb = append(nav.Breadcrumb, s.navItem(models.GeoLevelRegion, region, dir))
		for _, name := range s.geo.SubRegions(region) {
			nav.SubRegions = append(nav.SubRegions, s.navItem(models.GeoLevelSubRegion, name, dir))
		}
	}
	if subRegion != "" {
		nav.Breadcrumb = append(nav.Breadcrumb, s.navItem(models.GeoLevelSubRegion, subRegion, dir))
		for _, name := range s.geo.Districts(subRegion) {
			nav.Districts = append(nav.Districts, s.navItem(models.GeoLevelDistrict, name, dir))
		}
	}
	if district != "" {
		nav.Breadcrumb = append(nav.Breadcrumb, s.navItem(models.GeoLevelDistrict, district, dir))
		for _, sc := range dir.allOrder {
			ref := dir.placeOf[sc.ID]
			if ref.Known && ref.District == district {
				nav.Schools = append(nav.Schools, schoolItem(sc))
			}
		}
		sort.SliceStable(nav.Schools, func(i, j int) bool {
			if nav.Schools[i].Name != nav.Schools[j].Name {
				return nav.Schools[i].Name < nav.Schools[j].Name
			}
			return nav.Schools[i].ID < nav.Schools[j].ID
		})
	}
	if school != nil {
		nav.Breadcrumb = append(nav.Breadcrumb, schoolItem(*school))
	}
	return nav
}

func (s *AggregationService) countryItem(dir *schoolIndex) models.NavItem {
	return s.navItem(models.GeoLevelCountry, s.geo.Country(), dir)
}

func (s *AggregationService) navItem(level models.GeoLevel, name string, dir *schoolIndex) models.NavItem {
	scope := models.GeoScope{Level: level, ID: name}
	item := models.NavItem{Level: level, ID: name, Name: name}
	var points []*geom.Point
	for _, sc := range dir.allOrder {
		if !s.geo.Contains(scope, dir.placeOf[sc.ID]) {
			continue
		}
		item.SchoolCount++
		if p := schoolPoint(sc); p != nil {
			points = append(points, p)
		}
	}
	item.Bounds, item.Centroid = models.Extent(points)
	return item
}

func schoolItem(sc models.School) models.NavItem {
	item := models.NavItem{Level: models.GeoLevelSchool, ID: sc.ID, Name: sc.Name, SchoolCount: 1}
	if p := schoolPoint(sc); p != nil {
		item.Bounds, item.Centroid = models.Extent([]*geom.Point{p})
	}
	return item
}

func schoolPoint(sc models.School) *geom.Point {
	loc := sc.Location()
	if loc == nil {
		return nil
	}
	p, err := loc.Geom()
	if err != nil {
		return nil
	}
	return p
}

func ptr(v float64) *float64 { return &v }

func clampPct(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
