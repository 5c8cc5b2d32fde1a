package main

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Grafia incorreta conhecida na exportação do laboratório. Só a forma exata é
// corrigida.
const (
	misspelledLivramento = "SANT'' ANA DO LIVRAMENTO"
	canonicalLivramento  = "SANT'ANA DO LIVRAMENTO"
)

var (
	errMissingDate = errors.New("collection date is empty")
	errBadDate     = errors.New("collection date matches none of the accepted layouts")
)

// filterSamples applies, in order: deduplication by request, the collection
// reason filter, month derivation, the month limit and the municipality name
// correction.
func filterSamples(t *SampleTable, p Params, layouts []string, dateColumn string) ([]SampleRecord, FilterStats, error) {
	var st FilterStats
	if err := validateParams(p); err != nil {
		return nil, st, err
	}
	st.Read = len(t.Records)

	records := dedupe(t.Records)
	st.Deduplicated = len(records)

	records = filterReasons(records, p.Reasons)
	st.ByReason = len(records)

	records, err := assignMonths(records, layouts, dateColumn)
	if err != nil {
		return nil, st, err
	}
	records = filterMonths(records, p.MonthLimit)
	st.ByMonth = len(records)

	st.Renamed = normalizeMunicipalities(records)
	return records, st, nil
}

// dedupe mantém a primeira ocorrência de cada solicitação.
func dedupe(records []SampleRecord) []SampleRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]SampleRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Request]; ok {
			continue
		}
		seen[r.Request] = struct{}{}
		out = append(out, r)
	}
	return out
}

func filterReasons(records []SampleRecord, reasons []string) []SampleRecord {
	out := make([]SampleRecord, 0, len(records))
	for _, r := range records {
		if slices.Contains(reasons, r.Reason) {
			out = append(out, r)
		}
	}
	return out
}

// assignMonths returns a copy of records with Month set from the collection
// date.
func assignMonths(records []SampleRecord, layouts []string, dateColumn string) ([]SampleRecord, error) {
	out := make([]SampleRecord, len(records))
	for i, r := range records {
		m, err := collectionMonth(r.CollectionDate, layouts)
		if err != nil {
			return nil, &ParseError{Line: r.Line, Column: dateColumn, Value: r.CollectionDate, Err: err}
		}
		r.Month = m
		out[i] = r
	}
	return out, nil
}

func collectionMonth(value string, layouts []string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, errMissingDate
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, v); err == nil {
			return int(d.Month()), nil
		}
	}
	return 0, errBadDate
}

func filterMonths(records []SampleRecord, limit int) []SampleRecord {
	out := make([]SampleRecord, 0, len(records))
	for _, r := range records {
		if r.Month <= limit {
			out = append(out, r)
		}
	}
	return out
}

// normalizeMunicipalities corrige a grafia conhecida e devolve quantas linhas
// foram alteradas.
func normalizeMunicipalities(records []SampleRecord) int {
	n := 0
	for i := range records {
		if records[i].Municipality == misspelledLivramento {
			records[i].Municipality = canonicalLivramento
			n++
		}
	}
	return n
}
