package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// DefaultQuotaURL is the published quota spreadsheet.
const DefaultQuotaURL = "https://github.com/andrejarenkow/csv/raw/refs/heads/master/Amostras%20minimas%20por%20municipio.xlsx"

// Políticas para municípios com cota mínima zero.
const (
	ZeroQuotaUndefined = "indefinido" // indicador indefinido, fora da contagem dos 90%
	ZeroQuotaError     = "erro"       // falha com ComputationError
)

// Origem do denominador do percentual de municípios com indicador >= 90%.
const (
	DenominatorReference = "referencia" // número de linhas da referência de cotas
	DenominatorExpected  = "esperado"   // ExpectedMunicipalities
)

// Config holds all settings of the report tool.
type Config struct {
	Quota     QuotaConfig   `yaml:"cotas"`
	Report    ReportConfig  `yaml:"relatorio"`
	Columns   ColumnsConfig `yaml:"colunas"`
	Server    ServerConfig  `yaml:"servidor"`
	OutputDir string        `yaml:"saida"`
}

// QuotaConfig configures the quota reference source and its cache.
type QuotaConfig struct {
	Source  string        `yaml:"fonte"` // URL http(s) ou caminho local (.xlsx ou .csv)
	Timeout time.Duration `yaml:"timeout"`
	TTL     time.Duration `yaml:"ttl"` // zero: sem expiração
}

// ReportConfig holds the defaults and policies of the pipeline.
type ReportConfig struct {
	MonthLimit  int      `yaml:"mes_limite"`
	Reasons     []string `yaml:"motivos"`
	DateLayouts []string `yaml:"formatos_data"`
	ZeroQuota   string   `yaml:"cota_zero"`
	Denominator string   `yaml:"denominador"`
}

// ColumnsConfig names the interpreted columns of the laboratory export.
type ColumnsConfig struct {
	Request        string `yaml:"solicitacao"`
	Municipality   string `yaml:"municipio"`
	Reason         string `yaml:"motivo"`
	CollectionDate string `yaml:"data_coleta"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"endereco"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Quota: QuotaConfig{
			Source:  DefaultQuotaURL,
			Timeout: 30 * time.Second,
		},
		Report: ReportConfig{
			MonthLimit: 4,
			Reasons:    []string{ReasonPotability, ReasonDisaster},
			DateLayouts: []string{
				"02/01/2006",
				"02/01/2006 15:04",
				"02/01/2006 15:04:05",
				"2006-01-02",
				"2006-01-02 15:04:05",
				"2006-01-02T15:04:05",
				time.RFC3339,
			},
			ZeroQuota:   ZeroQuotaUndefined,
			Denominator: DenominatorReference,
		},
		Columns: ColumnsConfig{
			Request:        "Solicitação",
			Municipality:   "Municipio do Solicitante",
			Reason:         "Motivo da Coleta",
			CollectionDate: "Data de Coleta",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 64,
		},
		OutputDir: "./",
	}
}

// LoadConfig reads path (if not empty) over the defaults and applies the
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file (%s): %w", path, err)
		}
	}
	if v := os.Getenv("OUTPUT_FOLDER"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("COTAS_URL"); v != "" {
		cfg.Quota.Source = v
	}
	if v := os.Getenv("PORTA"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validateParams(Params{MonthLimit: c.Report.MonthLimit, Reasons: c.Report.Reasons}); err != nil {
		return err
	}
	if len(c.Report.DateLayouts) == 0 {
		return &ValidationError{Field: "formatos_data", Msg: "at least one date layout is required"}
	}
	if c.Report.ZeroQuota != ZeroQuotaUndefined && c.Report.ZeroQuota != ZeroQuotaError {
		return &ValidationError{Field: "cota_zero", Msg: fmt.Sprintf("unknown policy %q", c.Report.ZeroQuota)}
	}
	if c.Report.Denominator != DenominatorReference && c.Report.Denominator != DenominatorExpected {
		return &ValidationError{Field: "denominador", Msg: fmt.Sprintf("unknown mode %q", c.Report.Denominator)}
	}
	cols := []string{c.Columns.Request, c.Columns.Municipality, c.Columns.Reason, c.Columns.CollectionDate}
	if slices.Contains(cols, "") {
		return &ValidationError{Field: "colunas", Msg: "column names must not be empty"}
	}
	if c.Server.MaxUploadMB <= 0 {
		return &ValidationError{Field: "max_upload_mb", Msg: "must be positive"}
	}
	return nil
}

// validateParams checks the caller supplied month limit and reasons.
func validateParams(p Params) error {
	if p.MonthLimit < 1 || p.MonthLimit > 12 {
		return &ValidationError{Field: "mes_limite", Msg: fmt.Sprintf("%d is outside 1..12", p.MonthLimit)}
	}
	if len(p.Reasons) == 0 {
		return &ValidationError{Field: "motivos", Msg: "at least one collection reason is required"}
	}
	for _, r := range p.Reasons {
		if !slices.Contains(knownReasons, r) {
			return &ValidationError{Field: "motivos", Msg: fmt.Sprintf("unknown collection reason %q", r)}
		}
	}
	return nil
}
