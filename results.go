package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Arquivos gerados pelo relatório.
const (
	pivotFile       = "pivot_mensal.csv"
	summaryFile     = "analise_completa.csv"
	statusFile      = "resumo_status.csv"
	zeroSamplesFile = "municipios_sem_amostras.csv"
	workbookFile    = "relatorio.xlsx"
)

// writeReportFiles dumps the report tables into dir and returns the paths of
// the files created.
func writeReportFiles(rep *Report, dir string) ([]string, error) {
	files := []string{
		filepath.Join(dir, pivotFile),
		filepath.Join(dir, summaryFile),
		filepath.Join(dir, statusFile),
		filepath.Join(dir, zeroSamplesFile),
		filepath.Join(dir, workbookFile),
	}
	zero := zeroSampleRows(rep.ZeroSamples)
	writers := []func(path string) error{
		func(path string) error { return writeTableCSV(pivotTable(rep.Pivot), path) },
		func(path string) error { return writeTableCSV(summaryTable(rep.Summaries, rep.Params.MonthLimit), path) },
		func(path string) error {
			if err := toCSVFile(&rep.StatusCounts, path); err != nil {
				return fmt.Errorf("error writing status summary: %w", err)
			}
			return nil
		},
		func(path string) error {
			if err := toCSVFile(&zero, path); err != nil {
				return fmt.Errorf("error writing zero sample list: %w", err)
			}
			return nil
		},
		func(path string) error { return writeWorkbook(rep, path) },
	}
	for i, write := range writers {
		if err := write(files[i]); err != nil {
			// Nada fica solto na pasta de saída quando a escrita falha.
			removeFiles(files[:i+1])
			return nil, err
		}
	}
	return files, nil
}

// removeFiles apaga os arquivos que existirem, ignorando os ausentes.
func removeFiles(files []string) {
	for _, f := range files {
		os.Remove(f)
	}
}

// writeWorkbook grava todas as tabelas e as métricas numa planilha.
func writeWorkbook(rep *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const metricsSheet = "Metricas"
	if err := f.SetSheetName("Sheet1", metricsSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	metrics := [][]string{
		{"Métrica", "Valor"},
		{"Relatório", rep.ID},
		{"Arquivo", rep.Entry},
		{"Mês limite", fmt.Sprint(rep.Params.MonthLimit)},
		{"Motivos", strings.Join(rep.Params.Reasons, ", ")},
		{"Municípios com indicador ≥ 90%", fmt.Sprintf("%v%%", rep.PctMeeting90)},
		{"Municípios sem amostras coletadas", fmt.Sprint(rep.ZeroSampleCount)},
		{"Denominador", fmt.Sprint(rep.Denominator)},
	}
	if err := fillSheet(f, metricsSheet, metrics); err != nil {
		return err
	}

	status := [][]string{{"Status", "Quantidade"}}
	for _, sc := range rep.StatusCounts {
		status = append(status, []string{string(sc.Status), fmt.Sprint(sc.Count)})
	}
	zero := [][]string{{"Município", "Amostras_coletadas", "Mensal", "Amostras_minimo_ate_mes_limite", "Indicador"}}
	for _, z := range zeroSampleRows(rep.ZeroSamples) {
		zero = append(zero, []string{z.Municipality, fmt.Sprint(z.Collected), formatFloat(z.MinimumMonthly), formatFloat(z.RequiredByLimit), z.Indicator.String()})
	}

	sheets := []struct {
		name  string
		table [][]string
	}{
		{"Pivot_Mensal", pivotTable(rep.Pivot)},
		{"Analise_Completa", summaryTable(rep.Summaries, rep.Params.MonthLimit)},
		{"Resumo_Status", status},
		{"Sem_Amostras", zero},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("error creating sheet %s: %w", s.name, err)
		}
		if err := fillSheet(f, s.name, s.table); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving workbook (%s): %w", path, err)
	}
	return nil
}

// fillSheet writes table starting at A1, one row per line.
func fillSheet(f *excelize.File, sheet string, table [][]string) error {
	for i, line := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(line))
		for j, v := range line {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("error writing sheet %s: %w", sheet, err)
		}
	}
	if len(table) > 0 {
		last, _ := excelize.ColumnNumberToName(len(table[0]))
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return fmt.Errorf("error sizing sheet %s: %w", sheet, err)
		}
	}
	return nil
}

func zipFiles(filename string, basePath string, files []string) error {
	newfile, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = writeZip(newfile, basePath, files)
	if cerr := newfile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Zip incompleto não é deixado para trás.
		os.Remove(filename)
	}
	return err
}

// writeZip grava files em w. O diretório central só é escrito no Close do
// zip.Writer, então o erro dele também é devolvido.
func writeZip(w io.Writer, basePath string, files []string) error {
	zipWriter := zip.NewWriter(w)
	for _, file := range files {
		if err := addZipEntry(zipWriter, basePath, file); err != nil {
			zipWriter.Close()
			return fmt.Errorf("error adding %s: %w", file, err)
		}
	}
	return zipWriter.Close()
}

func addZipEntry(zipWriter *zip.Writer, basePath, file string) error {
	zipfile, err := os.Open(file)
	if err != nil {
		return err
	}
	defer zipfile.Close()
	info, err := zipfile.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	// Deflate is the compression method.
	header.Method = zip.Deflate
	t := strings.TrimPrefix(strings.TrimPrefix(file, basePath), string(filepath.Separator))
	if filepath.Dir(t) != "." {
		header.Name = filepath.ToSlash(t)
	}
	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, zipfile)
	return err
}

// bundleReport writes the report files, zips them into dir and removes the
// loose files. It returns the path of the zip.
func bundleReport(rep *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output folder (%s): %w", dir, err)
	}
	files, err := writeReportFiles(rep, dir)
	if err != nil {
		return "", err
	}
	bundle := filepath.Join(dir, fmt.Sprintf("relatorio-mes-%02d.zip", rep.Params.MonthLimit))
	if err := zipFiles(bundle, dir, files); err != nil {
		// Os arquivos soltos só são apagados depois de um zip completo.
		return "", fmt.Errorf("error zipping report files (%s): %w", bundle, err)
	}
	// Removendo os arquivos soltos, já incluídos no zip.
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return "", fmt.Errorf("error removing report file (%s): %w", f, err)
		}
	}
	return bundle, nil
}
