package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReporter(cfg Config, quotas quotaProvider) *Reporter {
	r := NewReporter(cfg, quotas, zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestReporterRun(t *testing.T) {
	quotas := &staticQuotas{quotas: fixtureQuotas()}
	rep, err := newTestReporter(DefaultConfig(), quotas).Run(context.Background(), sampleArchive(t), defaultParams())
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), rep.GeneratedAt)
	assert.Equal(t, "amostras_2024.csv", rep.Entry)
	assert.Equal(t, defaultParams(), rep.Params)
	assert.Equal(t, FilterStats{Read: 7, Deduplicated: 6, ByReason: 5, ByMonth: 4, Renamed: 1}, rep.Stats)

	assert.Equal(t, []PivotRow{
		{Municipality: "PORTO ALEGRE", Months: []int{1, 1, 0, 0}},
		{Municipality: "SANT'ANA DO LIVRAMENTO", Months: []int{0, 0, 1, 0}},
		{Municipality: "SÃO JOSÉ DO NORTE", Months: []int{0, 0, 0, 1}},
	}, rep.Pivot.Rows)

	require.Len(t, rep.Summaries, 4)
	porto, santana, canela, agua := rep.Summaries[0], rep.Summaries[1], rep.Summaries[2], rep.Summaries[3]

	assert.Equal(t, "PORTO ALEGRE", porto.Municipality)
	assert.Equal(t, 2, porto.Collected)
	assert.Equal(t, 40.0, porto.RequiredByLimit)
	assert.InDelta(t, 0.05, porto.Indicator.Value, 1e-9)
	assert.Equal(t, StatusNotMet, porto.Status)

	assert.Equal(t, "SANT'ANA DO LIVRAMENTO", santana.Municipality)
	assert.Equal(t, 1, santana.Collected)
	assert.Equal(t, []int{0, 0, 1, 0}, santana.Months)
	assert.InDelta(t, 0.125, santana.Indicator.Value, 1e-9)

	assert.Equal(t, "CANELA", canela.Municipality)
	assert.Zero(t, canela.Collected)
	assert.Equal(t, 6.0, canela.RequiredByLimit)
	assert.Equal(t, StatusNotMet, canela.Status)

	assert.Equal(t, "ÁGUA SANTA", agua.Municipality)
	assert.False(t, agua.Indicator.Defined)
	assert.Equal(t, StatusMet, agua.Status)

	assert.Equal(t, []StatusCount{{Status: StatusNotMet, Count: 3}, {Status: StatusMet, Count: 1}}, rep.StatusCounts)
	require.Len(t, rep.ZeroSamples, 2)
	assert.Equal(t, "CANELA", rep.ZeroSamples[0].Municipality)
	assert.Equal(t, "ÁGUA SANTA", rep.ZeroSamples[1].Municipality)
	assert.Equal(t, len(rep.ZeroSamples), rep.ZeroSampleCount)
	assert.Equal(t, []string{"SÃO JOSÉ DO NORTE"}, rep.Unmatched)

	assert.Zero(t, rep.PctMeeting90)
	assert.Equal(t, 4, rep.Denominator)
	assert.True(t, rep.DenominatorMismatch)
	assert.Equal(t, 1, quotas.calls)
}

func TestReporterRun_MonthLimitOne(t *testing.T) {
	rep, err := newTestReporter(DefaultConfig(), &staticQuotas{quotas: fixtureQuotas()}).
		Run(context.Background(), sampleArchive(t), Params{MonthLimit: 1, Reasons: []string{ReasonPotability}})
	require.NoError(t, err)

	assert.Equal(t, []PivotRow{{Municipality: "PORTO ALEGRE", Months: []int{1}}}, rep.Pivot.Rows)
	for _, s := range rep.Summaries {
		assert.Len(t, s.Months, 1)
	}
	assert.Equal(t, 10.0, rep.Summaries[0].RequiredByLimit)
	assert.Empty(t, rep.Unmatched)
}

func TestReporterRun_ExpectedDenominator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Report.Denominator = DenominatorExpected
	quotas := []MunicipalityQuota{{Municipality: "PORTO ALEGRE", MinimumMonthly: 0.25}}

	rep, err := newTestReporter(cfg, &staticQuotas{quotas: quotas}).Run(context.Background(), sampleArchive(t), defaultParams())
	require.NoError(t, err)
	assert.Equal(t, ExpectedMunicipalities, rep.Denominator)
	assert.InDelta(t, 2.0, rep.Summaries[0].Indicator.Value, 1e-9)
	assert.Equal(t, 0.2, rep.PctMeeting90) // 1/497
}

func TestReporterRun_Errors(t *testing.T) {
	errorPolicy := DefaultConfig()
	errorPolicy.Report.ZeroQuota = ZeroQuotaError

	tests := []struct {
		name      string
		cfg       Config
		quotas    *staticQuotas
		archive   []byte
		params    Params
		target    interface{}
		quotaCall int
	}{
		{
			name:    "invalid month limit",
			cfg:     DefaultConfig(),
			quotas:  &staticQuotas{quotas: fixtureQuotas()},
			archive: sampleArchive(t),
			params:  Params{MonthLimit: 13, Reasons: []string{ReasonPotability}},
			target:  new(*ValidationError),
		},
		{
			name:    "not a zip",
			cfg:     DefaultConfig(),
			quotas:  &staticQuotas{quotas: fixtureQuotas()},
			archive: []byte("nada"),
			params:  defaultParams(),
			target:  new(*FormatError),
		},
		{
			name:      "quota fetch",
			cfg:       DefaultConfig(),
			quotas:    &staticQuotas{err: &FetchError{Source: "http://cotas", Err: errors.New("connection refused")}},
			archive:   sampleArchive(t),
			params:    defaultParams(),
			target:    new(*FetchError),
			quotaCall: 1,
		},
		{
			name:      "zero quota as error",
			cfg:       errorPolicy,
			quotas:    &staticQuotas{quotas: fixtureQuotas()},
			archive:   sampleArchive(t),
			params:    defaultParams(),
			target:    new(*ComputationError),
			quotaCall: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := newTestReporter(tt.cfg, tt.quotas).Run(context.Background(), tt.archive, tt.params)
			assert.Nil(t, rep)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
			assert.Equal(t, tt.quotaCall, tt.quotas.calls)
		})
	}
}

func TestReporterRun_DistinctIDs(t *testing.T) {
	r := newTestReporter(DefaultConfig(), &staticQuotas{quotas: fixtureQuotas()})
	a, err := r.Run(context.Background(), sampleArchive(t), defaultParams())
	require.NoError(t, err)
	b, err := r.Run(context.Background(), sampleArchive(t), defaultParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Summaries, b.Summaries)
}
