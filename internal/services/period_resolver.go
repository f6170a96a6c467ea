package services

import (
	"fmt"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/models"
)

// PeriodResolver maps a reporting period to concrete dates.
type PeriodResolver interface {
	Resolve(period models.Period) (models.DateRange, error)
}

// CalendarPeriodResolver resolves periods relative to "today":
//   - FY is the fiscal year containing today
//   - QTR is the fiscal quarter containing today
//   - TERM is the school term containing today, or the most recently
//     finished term during holidays
type CalendarPeriodResolver struct {
	fiscalStart time.Month
	terms       []config.TermWindow
	now         func() time.Time
}

func NewCalendarPeriodResolver(cfg config.EngineConfig, now func() time.Time) *CalendarPeriodResolver {
	start := cfg.FiscalStartMonth
	if start < time.January || start > time.December {
		start = time.July
	}
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = config.DefaultTerms()
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarPeriodResolver{fiscalStart: start, terms: terms, now: now}
}

func (p *CalendarPeriodResolver) Resolve(period models.Period) (models.DateRange, error) {
	today := models.DateOf(p.now())
	switch period {
	case models.PeriodFiscalYear:
		return p.fiscalYear(today), nil
	case models.PeriodQuarter:
		fy := p.fiscalYear(today)
		monthsIn := (int(today.Month()) - int(p.fiscalStart) + 12) % 12
		from := models.Date{Time: fy.From.AddDate(0, (monthsIn/3)*3, 0)}
		to := models.Date{Time: from.AddDate(0, 3, -1)}
		return models.DateRange{From: from, To: to}, nil
	case models.PeriodTerm:
		return p.term(today), nil
	}
	return models.DateRange{}, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, period)
}

func (p *CalendarPeriodResolver) fiscalYear(today models.Date) models.DateRange {
	year := today.Year()
	if today.Month() < p.fiscalStart {
		year--
	}
	from := models.NewDate(year, p.fiscalStart, 1)
	return models.DateRange{From: from, To: models.Date{Time: from.AddDate(1, 0, -1)}}
}

func (p *CalendarPeriodResolver) term(today models.Date) models.DateRange {
	var latest *models.DateRange
	// this year's terms plus last year's, so early-year holidays resolve to
	// the final term of the previous year
	for _, year := range []int{today.Year() - 1, today.Year()} {
		for _, t := range p.terms {
			r := models.DateRange{
				From: models.NewDate(year, t.StartMonth, t.StartDay),
				To:   models.NewDate(year, t.EndMonth, t.EndDay),
			}
			if r.Contains(today) {
				return r
			}
			if r.To.Before(today) && (latest == nil || r.To.After(latest.To)) {
				rr := r
				latest = &rr
			}
		}
	}
	if latest != nil {
		return *latest
	}
	return p.fiscalYear(today)
}
