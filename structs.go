package main

import (
	"encoding/json"
	"strconv"
	"time"
)

// Motivos de coleta aceitos pelo relatório.
const (
	ReasonPotability = "Potabilidade"
	ReasonDisaster   = "Desastre"
	ReasonOther      = "Outros"
)

var knownReasons = []string{ReasonPotability, ReasonDisaster, ReasonOther}

// SampleRecord is one row of the laboratory export. The four interpreted
// columns are copied into typed fields; every original column is kept in
// Values, aligned with the archive header.
type SampleRecord struct {
	Line           int // linha no CSV de origem, cabeçalho = 1
	Request        string
	Municipality   string
	Reason         string
	CollectionDate string
	Month          int // preenchido pelo filtro, 1..12
	Values         []string
}

// SampleTable is the decoded content of the uploaded archive.
type SampleTable struct {
	Entry   string // nome do CSV dentro do zip
	Header  []string
	Records []SampleRecord
}

// MunicipalityQuota is one row of the quota reference.
type MunicipalityQuota struct {
	Municipality   string
	MinimumMonthly float64
}

// PivotRow holds the monthly counts of one municipality. Months[i] is the
// count for month i+1.
type PivotRow struct {
	Municipality string `json:"municipio"`
	Months       []int  `json:"meses"`
}

// PivotMatrix is the municipality×month count table of the filtered samples.
type PivotMatrix struct {
	MonthLimit int        `json:"mes_limite"`
	Rows       []PivotRow `json:"linhas"`
}

// Status is the compliance label of a municipality.
type Status string

const (
	StatusMet    Status = "Atendeu"
	StatusNotMet Status = "Não Atendeu"
)

// Indicator is collected/required. It is undefined when nothing is required
// and an undefined indicator never satisfies a threshold.
type Indicator struct {
	Value   float64
	Defined bool
}

// AtLeast reports whether the indicator is defined and >= threshold.
func (i Indicator) AtLeast(threshold float64) bool {
	return i.Defined && i.Value >= threshold
}

func (i Indicator) String() string {
	if !i.Defined {
		return ""
	}
	return strconv.FormatFloat(i.Value, 'f', 4, 64)
}

// MarshalCSV implementa gocsv.TypeMarshaller.
func (i Indicator) MarshalCSV() (string, error) {
	return i.String(), nil
}

func (i Indicator) MarshalJSON() ([]byte, error) {
	if !i.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(i.Value)
}

// MunicipalitySummary is one row of the compliance table.
type MunicipalitySummary struct {
	Municipality    string    `json:"municipio"`
	MinimumMonthly  float64   `json:"mensal"`
	Collected       int       `json:"amostras_coletadas"`
	Months          []int     `json:"meses"`
	Total           int       `json:"total_amostras"`
	RequiredByLimit float64   `json:"amostras_minimo_ate_mes_limite"`
	Indicator       Indicator `json:"indicador"`
	MetAnnual       bool      `json:"atingiu_anual"`
	MetEveryMonth   bool      `json:"atingiu_mensal"`
	Status          Status    `json:"status"`
}

// StatusCount is one line of the status summary.
type StatusCount struct {
	Status Status `json:"status" csv:"Status"`
	Count  int    `json:"quantidade" csv:"Quantidade"`
}

// FilterStats counts the rows left after each filtering step.
type FilterStats struct {
	Read         int `json:"lidas"`
	Deduplicated int `json:"apos_deduplicacao"`
	ByReason     int `json:"apos_motivo"`
	ByMonth      int `json:"apos_mes"`
	Renamed      int `json:"nomes_corrigidos"`
}

// Params are the caller supplied report parameters.
type Params struct {
	MonthLimit int      `json:"mes_limite"`
	Reasons    []string `json:"motivos"`
}

// Report is everything derived from one uploaded archive.
type Report struct {
	ID          string      `json:"id"`
	GeneratedAt time.Time   `json:"gerado_em"`
	Entry       string      `json:"arquivo"`
	Params      Params      `json:"parametros"`
	Stats       FilterStats `json:"contagens"`

	Pivot        PivotMatrix           `json:"pivot"`
	Summaries    []MunicipalitySummary `json:"analise_completa"`
	StatusCounts []StatusCount         `json:"resumo_status"`
	ZeroSamples  []MunicipalitySummary `json:"municipios_sem_amostras"`
	Unmatched    []string              `json:"municipios_fora_da_referencia"`

	PctMeeting90        float64 `json:"pct_indicador_90"`
	ZeroSampleCount     int     `json:"municipios_zerados"`
	Denominator         int     `json:"denominador"`
	DenominatorMismatch bool    `json:"denominador_divergente"`
}
