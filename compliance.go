package main

import (
	"fmt"
	"math"
	"sort"
)

// ExpectedMunicipalities is the number of municipalities of Rio Grande do Sul,
// the population the quota reference is meant to cover. It is only used as the
// percentage denominator when configured so; by default the reference row
// count is used and a divergence from this value is reported.
const ExpectedMunicipalities = 497

const (
	// IndicatorThreshold is the indicator value counted by the headline metric.
	IndicatorThreshold = 0.9
	// MonthlyFloorRatio is the share of the monthly quota every month must reach
	// for Atingiu_mensal.
	MonthlyFloorRatio = 0.80
)

// evaluate preenche os campos de cumprimento de cada linha. Status depende
// apenas do critério anual; o critério mensal é exposto à parte.
func evaluate(rows []MunicipalitySummary, limit int, zeroQuota string) error {
	for i := range rows {
		s := &rows[i]
		if math.IsNaN(s.MinimumMonthly) || math.IsInf(s.MinimumMonthly, 0) || s.MinimumMonthly < 0 {
			return &ComputationError{Municipality: s.Municipality, Err: fmt.Errorf("%w (got %v)", errInvalidQuota, s.MinimumMonthly)}
		}

		s.RequiredByLimit = s.MinimumMonthly * float64(limit)
		switch {
		case s.RequiredByLimit > 0:
			s.Indicator = Indicator{Value: float64(s.Collected) / s.RequiredByLimit, Defined: true}
		case zeroQuota == ZeroQuotaError:
			return &ComputationError{Municipality: s.Municipality, Err: errZeroRequired}
		default:
			s.Indicator = Indicator{}
		}

		s.MetAnnual = float64(s.Collected) >= s.RequiredByLimit
		s.MetEveryMonth = metEveryMonth(s.Months, s.MinimumMonthly)
		if s.MetAnnual {
			s.Status = StatusMet
		} else {
			s.Status = StatusNotMet
		}
	}
	return nil
}

func metEveryMonth(months []int, minimumMonthly float64) bool {
	floor := MonthlyFloorRatio * minimumMonthly
	for _, c := range months {
		if float64(c) < floor {
			return false
		}
	}
	return true
}

// pctMeetingThreshold is the share, in percent rounded to two decimals, of
// municipalities whose indicator is defined and at least IndicatorThreshold.
func pctMeetingThreshold(rows []MunicipalitySummary, denominator int) (float64, error) {
	if denominator <= 0 {
		return 0, &ComputationError{Err: errZeroDenominator}
	}
	n := 0
	for _, s := range rows {
		if s.Indicator.AtLeast(IndicatorThreshold) {
			n++
		}
	}
	return round2(float64(n) / float64(denominator) * 100), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// zeroSamples devolve as linhas sem nenhuma amostra coletada, na ordem da referência.
func zeroSamples(rows []MunicipalitySummary) []MunicipalitySummary {
	var out []MunicipalitySummary
	for _, s := range rows {
		if s.Collected == 0 {
			out = append(out, s)
		}
	}
	return out
}

// statusCounts counts rows per status, most frequent first.
func statusCounts(rows []MunicipalitySummary) []StatusCount {
	counts := make(map[Status]int)
	for _, s := range rows {
		counts[s.Status]++
	}
	out := make([]StatusCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, StatusCount{Status: st, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}
