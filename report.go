package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// quotaProvider supplies the quota reference of a report.
type quotaProvider interface {
	Get(ctx context.Context) ([]MunicipalityQuota, error)
}

// Reporter runs the pipeline for uploaded archives. Each Run works on its own
// tables, so a Reporter may serve concurrent requests; the quota provider is
// the only shared state.
type Reporter struct {
	cfg    Config
	quotas quotaProvider
	log    *zap.Logger
	now    func() time.Time
}

// NewReporter returns a Reporter using cfg for columns, date layouts and policies.
func NewReporter(cfg Config, quotas quotaProvider, log *zap.Logger) *Reporter {
	return &Reporter{cfg: cfg, quotas: quotas, log: log, now: time.Now}
}

// Run produces the report of one zip archive.
func (r *Reporter) Run(ctx context.Context, archive []byte, p Params) (*Report, error) {
	id := uuid.NewString()
	log := r.log.With(zap.String("relatorio", id))

	if err := validateParams(p); err != nil {
		return nil, err
	}

	table, err := readArchive(archive, r.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("error reading archive: %w", err)
	}
	log.Debug("archive decoded", zap.String("arquivo", table.Entry), zap.Int("linhas", len(table.Records)))

	records, stats, err := filterSamples(table, p, r.cfg.Report.DateLayouts, r.cfg.Columns.CollectionDate)
	if err != nil {
		return nil, fmt.Errorf("error filtering samples of %s: %w", table.Entry, err)
	}
	log.Info("samples filtered",
		zap.Int("lidas", stats.Read),
		zap.Int("apos_deduplicacao", stats.Deduplicated),
		zap.Int("apos_motivo", stats.ByReason),
		zap.Int("apos_mes", stats.ByMonth),
		zap.Int("nomes_corrigidos", stats.Renamed))

	quotas, err := r.quotas.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading quota reference: %w", err)
	}

	rep, err := buildReport(records, quotas, p, r.cfg.Report)
	if err != nil {
		return nil, err
	}
	rep.ID = id
	rep.GeneratedAt = r.now()
	rep.Entry = table.Entry
	rep.Stats = stats

	if len(rep.Unmatched) > 0 {
		log.Warn("municipalities outside the quota reference were dropped", zap.Strings("municipios", rep.Unmatched))
	}
	if rep.DenominatorMismatch {
		log.Warn("quota reference size differs from the expected municipality count",
			zap.Int("referencia", len(quotas)),
			zap.Int("esperado", ExpectedMunicipalities))
	}
	log.Info("report built",
		zap.Float64("pct_indicador_90", rep.PctMeeting90),
		zap.Int("municipios_zerados", rep.ZeroSampleCount))
	return rep, nil
}

// buildReport aggregates the filtered records and evaluates compliance
// against quotas.
func buildReport(records []SampleRecord, quotas []MunicipalityQuota, p Params, cfg ReportConfig) (*Report, error) {
	pivot := buildPivot(records, p.MonthLimit)
	summaries, unmatched := joinQuotas(pivot, countByMunicipality(records), quotas)
	if err := evaluate(summaries, p.MonthLimit, cfg.ZeroQuota); err != nil {
		return nil, err
	}

	denominator := len(quotas)
	if cfg.Denominator == DenominatorExpected {
		denominator = ExpectedMunicipalities
	}
	pct, err := pctMeetingThreshold(summaries, denominator)
	if err != nil {
		return nil, err
	}

	zero := zeroSamples(summaries)
	return &Report{
		Params:              p,
		Pivot:               pivot,
		Summaries:           summaries,
		StatusCounts:        statusCounts(summaries),
		ZeroSamples:         zero,
		Unmatched:           unmatched,
		PctMeeting90:        pct,
		ZeroSampleCount:     len(zero),
		Denominator:         denominator,
		DenominatorMismatch: len(quotas) != ExpectedMunicipalities,
	}, nil
}
