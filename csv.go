package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
)

// ZeroSampleRow is one line of the list of municipalities without samples.
type ZeroSampleRow struct {
	Municipality    string    `csv:"Município"`
	Collected       int       `csv:"Amostras_coletadas"`
	MinimumMonthly  float64   `csv:"Mensal"`
	RequiredByLimit float64   `csv:"Amostras_minimo_ate_mes_limite"`
	Indicator       Indicator `csv:"Indicador"`
}

func zeroSampleRows(rows []MunicipalitySummary) []ZeroSampleRow {
	out := make([]ZeroSampleRow, len(rows))
	for i, s := range rows {
		out[i] = ZeroSampleRow{
			Municipality:    s.Municipality,
			Collected:       s.Collected,
			MinimumMonthly:  s.MinimumMonthly,
			RequiredByLimit: s.RequiredByLimit,
			Indicator:       s.Indicator,
		}
	}
	return out
}

// newCSVWriter usa os mesmos separadores dos arquivos de origem.
func newCSVWriter(f *os.File) *csv.Writer {
	w := csv.NewWriter(f)
	w.Comma = ';'
	w.UseCRLF = true
	return w
}

func toCSVFile(in interface{}, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file(%s):%q", path, err)
	}
	defer f.Close()
	return gocsv.MarshalCSV(in, newCSVWriter(f))
}

// pivotTable devolve cabeçalho e linhas da tabela município × mês.
func pivotTable(pm PivotMatrix) [][]string {
	header := []string{"Municipio do Solicitante"}
	for m := 1; m <= pm.MonthLimit; m++ {
		header = append(header, strconv.Itoa(m))
	}
	table := [][]string{header}
	for _, row := range pm.Rows {
		line := []string{row.Municipality}
		for _, c := range row.Months {
			line = append(line, strconv.Itoa(c))
		}
		table = append(table, line)
	}
	return table
}

// summaryTable builds the full compliance table: Município, Mensal, the month
// columns in ascending order, then the derived columns.
func summaryTable(rows []MunicipalitySummary, limit int) [][]string {
	header := []string{"Município", "Mensal"}
	for m := 1; m <= limit; m++ {
		header = append(header, strconv.Itoa(m))
	}
	header = append(header, "Total de Amostras", "Amostras_minimo_ate_mes_limite", "Indicador", "Atingiu_mensal", "Status")

	table := [][]string{header}
	for _, s := range rows {
		line := []string{s.Municipality, formatFloat(s.MinimumMonthly)}
		for _, c := range s.Months {
			line = append(line, strconv.Itoa(c))
		}
		line = append(line,
			strconv.Itoa(s.Total),
			formatFloat(s.RequiredByLimit),
			s.Indicator.String(),
			strconv.FormatBool(s.MetEveryMonth),
			string(s.Status))
		table = append(table, line)
	}
	return table
}

func writeTableCSV(table [][]string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file(%s):%q", path, err)
	}
	defer f.Close()
	w := newCSVWriter(f)
	if err := w.WriteAll(table); err != nil {
		return fmt.Errorf("error writing CSV file(%s): %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
