package main

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// BOM UTF-8 lido como Latin-1.
const latin1BOM = "\u00ef\u00bb\u00bf"

// readArchive extracts the single CSV entry of a zip archive and decodes it as
// semicolon separated Latin-1 text.
func readArchive(data []byte, cols ColumnsConfig) (*SampleTable, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Err: fmt.Errorf("error opening zip archive: %w", err)}
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			entries = append(entries, f)
		}
	}
	switch len(entries) {
	case 0:
		return nil, &FormatError{Err: errNoCSVEntry}
	case 1:
	default:
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		return nil, &FormatError{Err: fmt.Errorf("%w: %s", errManyCSVEntries, strings.Join(names, ", "))}
	}

	entry := entries[0]
	rc, err := entry.Open()
	if err != nil {
		return nil, &FormatError{Entry: entry.Name, Err: err}
	}
	defer rc.Close()

	t, err := parseSamples(rc, cols)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Entry == "" {
			fe.Entry = entry.Name
		}
		return nil, err
	}
	t.Entry = entry.Name
	return t, nil
}

// parseSamples lê o CSV (separador ';', Latin-1) mantendo todas as colunas.
func parseSamples(r io.Reader, cols ColumnsConfig) (*SampleTable, error) {
	cr := csv.NewReader(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	cr.Comma = ';'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &FormatError{Err: errEmptyCSV}
	}
	if err != nil {
		return nil, csvFormatError(err)
	}
	header[0] = strings.TrimPrefix(header[0], latin1BOM)
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	idx, err := columnIndexes(header, cols)
	if err != nil {
		return nil, err
	}

	t := &SampleTable{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvFormatError(err)
		}
		line, _ := cr.FieldPos(0)
		t.Records = append(t.Records, SampleRecord{
			Line:           line,
			Request:        row[idx.request],
			Municipality:   row[idx.municipality],
			Reason:         row[idx.reason],
			CollectionDate: row[idx.collectionDate],
			Values:         row,
		})
	}
	return t, nil
}

// checkHeader rejeita nomes de coluna vazios ou repetidos.
func checkHeader(header []string) error {
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return &FormatError{Line: 1, Err: fmt.Errorf("%w at position %d", errEmptyHeader, i+1)}
		}
		if prev, ok := seen[name]; ok {
			return &FormatError{Line: 1, Err: fmt.Errorf("%w: %q at positions %d and %d", errDuplicateHeader, name, prev, i+1)}
		}
		seen[name] = i + 1
	}
	return nil
}

type sampleColumns struct {
	request, municipality, reason, collectionDate int
}

// columnIndexes resolve as colunas interpretadas uma única vez, no cabeçalho
// já validado por checkHeader.
func columnIndexes(header []string, cols ColumnsConfig) (sampleColumns, error) {
	find := func(name string) (int, error) {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i, nil
			}
		}
		return 0, &ValidationError{Field: "colunas", Msg: fmt.Sprintf("missing required column %q", name)}
	}

	var sc sampleColumns
	var err error
	if sc.request, err = find(cols.Request); err != nil {
		return sc, err
	}
	if sc.municipality, err = find(cols.Municipality); err != nil {
		return sc, err
	}
	if sc.reason, err = find(cols.Reason); err != nil {
		return sc, err
	}
	if sc.collectionDate, err = find(cols.CollectionDate); err != nil {
		return sc, err
	}
	return sc, nil
}

func csvFormatError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Line: pe.Line, Err: pe.Err}
	}
	return &FormatError{Err: err}
}
