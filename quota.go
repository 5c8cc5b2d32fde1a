package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Colunas da planilha de amostras mínimas.
const (
	quotaMunicipalityColumn = "Município"
	quotaMonthlyColumn      = "Mensal"
	quotaTotalRow           = "TOTAL"
)

// quotaRow é uma linha ainda não interpretada da referência.
type quotaRow struct {
	Line         int
	Municipality string
	Monthly      string
}

// quotaCSVRow is the gocsv binding of the CSV flavour of the reference.
type quotaCSVRow struct {
	Municipality string `csv:"Município"`
	Monthly      string `csv:"Mensal"`
}

// LoadQuotas reads the quota reference from an http(s) URL or a local file.
// Spreadsheets (.xlsx) and semicolon or comma separated CSV are accepted.
func LoadQuotas(ctx context.Context, client *http.Client, source string) ([]MunicipalityQuota, error) {
	data, err := readQuotaSource(ctx, client, source)
	if err != nil {
		return nil, err
	}
	var rows []quotaRow
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		rows, err = quotaRowsXLSX(bytes.NewReader(data))
	} else {
		rows, err = quotaRowsCSV(data)
	}
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Entry == "" {
			fe.Entry = source
		}
		return nil, err
	}
	return cleanQuotas(rows)
}

func readQuotaSource(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if source == "" {
		return nil, &FetchError{Err: errNoQuotaSource}
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, &FetchError{Source: source, Err: err}
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: source, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &FetchError{Source: source, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	return b, nil
}

// quotaRowsXLSX lê a primeira aba; a primeira linha é o cabeçalho.
func quotaRowsXLSX(r io.Reader) ([]quotaRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{Err: fmt.Errorf("error opening spreadsheet: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Err: errors.New("spreadsheet has no sheets")}
	}
	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{Err: fmt.Errorf("error reading sheet %s: %w", sheets[0], err)}
	}
	if len(cells) == 0 {
		return nil, &ValidationError{Field: "cotas", Msg: errMissingQuotaCols.Error()}
	}

	mi, qi := quotaColumnIndexes(cells[0])
	if mi < 0 || qi < 0 {
		return nil, &ValidationError{Field: "cotas", Msg: errMissingQuotaCols.Error()}
	}
	cell := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	rows := make([]quotaRow, 0, len(cells)-1)
	for i, row := range cells[1:] {
		rows = append(rows, quotaRow{Line: i + 2, Municipality: cell(row, mi), Monthly: cell(row, qi)})
	}
	return rows, nil
}

// quotaRowsCSV aceita UTF-8 ou Latin-1, separador ';' ou ','.
func quotaRowsCSV(data []byte) ([]quotaRow, error) {
	text := string(data)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().String(text)
		if err != nil {
			return nil, &FormatError{Err: err}
		}
		text = decoded
	}
	text = strings.TrimPrefix(text, "\ufeff")

	comma := ';'
	firstLine, _, _ := strings.Cut(text, "\n")
	if !strings.ContainsRune(firstLine, ';') && strings.ContainsRune(firstLine, ',') {
		comma = ','
	}
	newReader := func() *csv.Reader {
		cr := csv.NewReader(strings.NewReader(text))
		cr.Comma = comma
		return cr
	}

	header, err := newReader().Read()
	if err != nil {
		return nil, csvFormatError(err)
	}
	if mi, qi := quotaColumnIndexes(header); mi < 0 || qi < 0 {
		return nil, &ValidationError{Field: "cotas", Msg: errMissingQuotaCols.Error()}
	}

	var parsed []quotaCSVRow
	if err := gocsv.UnmarshalCSV(newReader(), &parsed); err != nil {
		return nil, csvFormatError(err)
	}
	rows := make([]quotaRow, len(parsed))
	for i, p := range parsed {
		rows[i] = quotaRow{Line: i + 2, Municipality: p.Municipality, Monthly: p.Monthly}
	}
	return rows, nil
}

func quotaColumnIndexes(header []string) (municipality, monthly int) {
	municipality, monthly = -1, -1
	for i, h := range header {
		switch joinKey(h) {
		case quotaMunicipalityColumn:
			municipality = i
		case quotaMonthlyColumn:
			monthly = i
		}
	}
	return municipality, monthly
}

// cleanQuotas drops the TOTAL row and blank lines, parses the monthly quota
// and rejects duplicated municipalities.
func cleanQuotas(rows []quotaRow) ([]MunicipalityQuota, error) {
	seen := make(map[string]int)
	out := make([]MunicipalityQuota, 0, len(rows))
	for _, r := range rows {
		name := joinKey(r.Municipality)
		monthly := strings.TrimSpace(r.Monthly)
		if name == quotaTotalRow || (name == "" && monthly == "") {
			continue
		}
		if name == "" {
			return nil, &ParseError{Line: r.Line, Column: quotaMunicipalityColumn, Value: r.Municipality, Err: errors.New("municipality is empty")}
		}
		v, err := parseQuotaValue(monthly)
		if err != nil {
			return nil, &ParseError{Line: r.Line, Column: quotaMonthlyColumn, Value: r.Monthly, Err: err}
		}
		if prev, ok := seen[name]; ok {
			return nil, &ValidationError{Field: "cotas", Msg: fmt.Sprintf("municipality %s repeated at lines %d and %d", name, prev, r.Line)}
		}
		seen[name] = r.Line
		out = append(out, MunicipalityQuota{Municipality: name, MinimumMonthly: v})
	}
	if len(out) == 0 {
		return nil, &ValidationError{Field: "cotas", Msg: "quota reference has no municipalities"}
	}
	return out, nil
}

// parseQuotaValue aceita ponto ou vírgula decimal ("12.5", "12,5", "1.234,5").
func parseQuotaValue(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("monthly quota is empty")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// QuotaCache keeps the quota reference for the whole process. It is filled on
// first use and emptied by Invalidate or, when a TTL is set, by expiry.
type QuotaCache struct {
	mu       sync.Mutex
	quotas   []MunicipalityQuota
	loadedAt time.Time

	ttl  time.Duration
	load func(ctx context.Context) ([]MunicipalityQuota, error)
	now  func() time.Time
	log  *zap.Logger
}

// NewQuotaCache returns a cache loading from cfg.Source.
func NewQuotaCache(cfg QuotaConfig, log *zap.Logger) *QuotaCache {
	client := &http.Client{Timeout: cfg.Timeout}
	return &QuotaCache{
		ttl: cfg.TTL,
		load: func(ctx context.Context) ([]MunicipalityQuota, error) {
			return LoadQuotas(ctx, client, cfg.Source)
		},
		now: time.Now,
		log: log.With(zap.String("fonte", cfg.Source)),
	}
}

// Get returns a copy of the cached reference, loading it if needed.
func (c *QuotaCache) Get(ctx context.Context) ([]MunicipalityQuota, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quotas != nil && c.ttl > 0 && c.now().Sub(c.loadedAt) > c.ttl {
		c.log.Debug("quota reference expired")
		c.quotas = nil
	}
	if c.quotas == nil {
		start := c.now()
		q, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.quotas, c.loadedAt = q, c.now()
		c.log.Info("quota reference loaded",
			zap.Int("municipios", len(q)),
			zap.Duration("duracao", c.loadedAt.Sub(start)))
	}
	out := make([]MunicipalityQuota, len(c.quotas))
	copy(out, c.quotas)
	return out, nil
}

// Invalidate empties the cache; the next Get reloads the reference.
func (c *QuotaCache) Invalidate() {
	c.mu.Lock()
	c.quotas = nil
	c.mu.Unlock()
	c.log.Info("quota reference invalidated")
}
