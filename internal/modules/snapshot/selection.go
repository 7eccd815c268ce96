package snapshot

import (
	"github.com/aristath/underwriter/internal/domain"
)

// typeRank orders period types reported at the same end date; a full fiscal
// year is preferred over trailing, year-to-date and quarterly figures.
var typeRank = map[domain.PeriodType]int{
	domain.PeriodTypeFYE:     4,
	domain.PeriodTypeTTM:     3,
	domain.PeriodTypeYTD:     2,
	domain.PeriodTypeQuarter: 1,
}

// SelectPeriod picks the analysis period for a strategy.
func SelectPeriod(model domain.FinancialModel, strategy Strategy, periodID string) (domain.Period, bool) {
	switch strategy {
	case "", StrategyLatestFY:
		return latest(model, func(p domain.Period) bool { return p.Type.IsFullYear() })
	case StrategyLatestAvailable:
		return latest(model, func(domain.Period) bool { return true })
	case StrategyLatestInterim:
		return latest(model, func(p domain.Period) bool { return !p.Type.IsFullYear() })
	case StrategySpecificPeriod:
		if periodID == "" {
			return domain.Period{}, false
		}
		p, ok := model.Period(periodID)
		if !ok {
			return domain.Period{}, false
		}
		return p.Clone(), true
	default:
		return domain.Period{}, false
	}
}

func latest(model domain.FinancialModel, keep func(domain.Period) bool) (domain.Period, bool) {
	var best domain.Period
	found := false
	for _, p := range model.Periods {
		if !keep(p) {
			continue
		}
		if !found || p.PeriodEnd.After(best.PeriodEnd) ||
			(p.PeriodEnd.Equal(best.PeriodEnd) && typeRank[p.Type] > typeRank[best.Type]) {
			best = p
			found = true
		}
	}
	if !found {
		return domain.Period{}, false
	}
	return best.Clone(), true
}
