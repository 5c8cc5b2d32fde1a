package main

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// Exportação de exemplo: uma solicitação duplicada, um motivo fora do filtro,
// uma coleta depois do mês limite e um município fora da referência.
const sampleCSV = "Solicitação;Municipio do Solicitante;Motivo da Coleta;Data de Coleta;Laboratório\n" +
	"100;PORTO ALEGRE;Potabilidade;15/01/2024;LACEN\n" +
	"100;PORTO ALEGRE;Potabilidade;16/01/2024;LACEN\n" +
	"101;PORTO ALEGRE;Desastre;03/02/2024 10:30;LACEN\n" +
	"102;SANT'' ANA DO LIVRAMENTO;Potabilidade;2024-03-10;LACEN\n" +
	"103;SANT'' ANA DO LIVRAMENTO;Outros;2024-03-11;LACEN\n" +
	"104;CANELA;Potabilidade;20/06/2024;LACEN\n" +
	"105;SÃO JOSÉ DO NORTE;Potabilidade;05/04/2024;LACEN\n"

type zipEntry struct {
	name string
	data []byte
}

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	enc, err := charmap.ISO8859_1.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(enc)
}

func zipArchive(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sampleArchive(t *testing.T) []byte {
	t.Helper()
	return zipArchive(t, zipEntry{name: "amostras_2024.csv", data: latin1(t, sampleCSV)})
}

func fixtureQuotas() []MunicipalityQuota {
	return []MunicipalityQuota{
		{Municipality: "PORTO ALEGRE", MinimumMonthly: 10},
		{Municipality: "SANT'ANA DO LIVRAMENTO", MinimumMonthly: 2},
		{Municipality: "CANELA", MinimumMonthly: 1.5},
		{Municipality: "ÁGUA SANTA", MinimumMonthly: 0},
	}
}

func defaultParams() Params {
	return Params{MonthLimit: 4, Reasons: []string{ReasonPotability, ReasonDisaster}}
}

// staticQuotas devolve sempre a mesma referência e conta as chamadas.
type staticQuotas struct {
	quotas []MunicipalityQuota
	err    error
	calls  int
}

func (s *staticQuotas) Get(ctx context.Context) ([]MunicipalityQuota, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]MunicipalityQuota, len(s.quotas))
	copy(out, s.quotas)
	return out, nil
}
