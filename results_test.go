package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixtureReport(t *testing.T) *Report {
	t.Helper()
	rep, err := newTestReporter(DefaultConfig(), &staticQuotas{quotas: fixtureQuotas()}).
		Run(context.Background(), sampleArchive(t), defaultParams())
	require.NoError(t, err)
	return rep
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = b
	}
	return out
}

func csvLines(b []byte) []string {
	return strings.Split(strings.TrimSuffix(string(b), "\r\n"), "\r\n")
}

func TestBundleReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saida")
	bundle, err := bundleReport(fixtureReport(t), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "relatorio-mes-04.zip"), bundle)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "loose files must be removed")

	files := readZip(t, bundle)
	assert.Len(t, files, 5)
	for _, name := range []string{pivotFile, summaryFile, statusFile, zeroSamplesFile, workbookFile} {
		assert.Contains(t, files, name)
	}

	pivot := csvLines(files[pivotFile])
	assert.Equal(t, []string{
		"Municipio do Solicitante;1;2;3;4",
		"PORTO ALEGRE;1;1;0;0",
		"SANT'ANA DO LIVRAMENTO;0;0;1;0",
		"SÃO JOSÉ DO NORTE;0;0;0;1",
	}, pivot)

	summary := csvLines(files[summaryFile])
	require.Len(t, summary, 5)
	assert.Equal(t, "Município;Mensal;1;2;3;4;Total de Amostras;Amostras_minimo_ate_mes_limite;Indicador;Atingiu_mensal;Status", summary[0])
	assert.Equal(t, "PORTO ALEGRE;10;1;1;0;0;2;40;0.0500;false;Não Atendeu", summary[1])
	assert.Equal(t, "SANT'ANA DO LIVRAMENTO;2;0;0;1;0;1;8;0.1250;false;Não Atendeu", summary[2])
	assert.Equal(t, "ÁGUA SANTA;0;0;0;0;0;0;0;;true;Atendeu", summary[4])

	status := csvLines(files[statusFile])
	assert.Equal(t, []string{"Status;Quantidade", "Não Atendeu;3", "Atendeu;1"}, status)

	zero := csvLines(files[zeroSamplesFile])
	require.Len(t, zero, 3)
	assert.Equal(t, "Município;Amostras_coletadas;Mensal;Amostras_minimo_ate_mes_limite;Indicador", zero[0])
	assert.True(t, strings.HasPrefix(zero[1], "CANELA;0;"), zero[1])
	assert.True(t, strings.HasPrefix(zero[2], "ÁGUA SANTA;0;"), zero[2])
}

func TestWriteWorkbook(t *testing.T) {
	rep := fixtureReport(t)
	path := filepath.Join(t.TempDir(), workbookFile)
	require.NoError(t, writeWorkbook(rep, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Metricas", "Pivot_Mensal", "Analise_Completa", "Resumo_Status", "Sem_Amostras"}, f.GetSheetList())

	rows, err := f.GetRows("Analise_Completa")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Status", rows[0][len(rows[0])-1])
	assert.Equal(t, "CANELA", rows[3][0])

	id, err := f.GetCellValue("Metricas", "B2")
	require.NoError(t, err)
	assert.Equal(t, rep.ID, id)
}

// fullDisk recusa toda escrita, como um disco sem espaço.
type fullDisk struct{}

func (fullDisk) Write(p []byte) (int, error) { return 0, errors.New("no space left on device") }

func TestWriteZip_CloseError(t *testing.T) {
	// Entradas pequenas ficam no buffer do zip.Writer até o Close.
	path := writeFile(t, "pivot_mensal.csv", []byte("Municipio do Solicitante;1\r\n"))
	err := writeZip(fullDisk{}, filepath.Dir(path), []string{path})
	assert.ErrorContains(t, err, "no space left on device")
}

func TestBundleReport_ZipFailureKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "relatorio-mes-04.zip")
	require.NoError(t, os.Mkdir(bundle, 0o755))

	_, err := bundleReport(fixtureReport(t), dir)
	require.Error(t, err)
	for _, name := range []string{pivotFile, summaryFile, statusFile, zeroSamplesFile, workbookFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestBundleReport_WriteFailureRemovesPartialFiles(t *testing.T) {
	dir := t.TempDir()
	// A planilha, última a ser escrita, não pode ser criada.
	blocked := filepath.Join(dir, workbookFile)
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "ocupado"), 0o755))

	_, err := bundleReport(fixtureReport(t), dir)
	require.Error(t, err)
	for _, name := range []string{pivotFile, summaryFile, statusFile, zeroSamplesFile} {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "relatorio-mes-04.zip"))
}
