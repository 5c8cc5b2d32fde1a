package main

import (
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/text/unicode/norm"
)

// joinKey is the form under which municipality names are grouped and joined:
// surrounding spaces removed and Unicode NFC. No other matching is attempted.
func joinKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// countByMunicipality conta as amostras filtradas de cada município.
func countByMunicipality(records []SampleRecord) map[string]int {
	totals := make(map[string]int)
	for _, r := range records {
		totals[joinKey(r.Municipality)]++
	}
	return totals
}

// buildPivot counts samples per municipality and month. Every month from 1 to
// limit is present in every row, zero when nothing was collected. Rows are
// sorted by municipality.
func buildPivot(records []SampleRecord, limit int) PivotMatrix {
	byName := make(map[string][]int)
	for _, r := range records {
		k := joinKey(r.Municipality)
		months, ok := byName[k]
		if !ok {
			months = make([]int, limit)
			byName[k] = months
		}
		if r.Month >= 1 && r.Month <= limit {
			months[r.Month-1]++
		}
	}

	names := make([]string, 0, len(byName))
	for k := range byName {
		names = append(names, k)
	}
	slices.Sort(names)

	pm := PivotMatrix{MonthLimit: limit, Rows: make([]PivotRow, 0, len(names))}
	for _, k := range names {
		pm.Rows = append(pm.Rows, PivotRow{Municipality: k, Months: byName[k]})
	}
	return pm
}

// joinQuotas right-joins the collected counts against the quota reference.
// The reference decides which municipalities are reported: every quota row
// yields one summary, in reference order, with zero counts when nothing was
// collected; municipalities absent from the reference are dropped and
// returned, sorted, as unmatched.
func joinQuotas(pm PivotMatrix, totals map[string]int, quotas []MunicipalityQuota) ([]MunicipalitySummary, []string) {
	months := make(map[string][]int, len(pm.Rows))
	for _, row := range pm.Rows {
		months[row.Municipality] = row.Months
	}

	known := make(map[string]struct{}, len(quotas))
	out := make([]MunicipalitySummary, 0, len(quotas))
	for _, q := range quotas {
		k := joinKey(q.Municipality)
		known[k] = struct{}{}

		m := make([]int, pm.MonthLimit)
		copy(m, months[k])
		s := MunicipalitySummary{
			Municipality:   k,
			MinimumMonthly: q.MinimumMonthly,
			Collected:      totals[k],
			Months:         m,
		}
		for _, c := range m {
			s.Total += c
		}
		out = append(out, s)
	}

	var unmatched []string
	for _, row := range pm.Rows {
		if _, ok := known[row.Municipality]; !ok {
			unmatched = append(unmatched, row.Municipality)
		}
	}
	return out, unmatched
}
