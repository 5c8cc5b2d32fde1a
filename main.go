package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dadosjusbr/status"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	cfg    Config
	logger *zap.Logger

	// relatorio flags
	archivePath string
	monthLimit  int
	reasons     []string
	quotaSource string
	outputDir   string
)

var rootCmd = &cobra.Command{
	Use:   "amostras",
	Short: "Cumprimento das amostras mínimas de água por município",
	Long: `amostras lê a exportação do laboratório (zip com um CSV separado por ';', Latin-1),
conta as amostras por município e mês e compara com as amostras mínimas mensais
de cada município.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = LoadConfig(cfgFile); err != nil {
			return err
		}
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var reportCmd = &cobra.Command{
	Use:   "relatorio",
	Short: "Gera o relatório de um arquivo zip",
	Long: `Processa o zip informado e grava na pasta de saída:
  - pivot_mensal.csv: amostras por município e mês
  - analise_completa.csv: cumprimento por município
  - resumo_status.csv: quantidade de municípios por status
  - municipios_sem_amostras.csv
  - relatorio.xlsx com todas as tabelas
reunidos em relatorio-mes-NN.zip.

Exemplo:
  amostras relatorio --arquivo dados.zip --mes-limite 4 --motivo Potabilidade --motivo Desastre`,
	RunE: runReport,
}

var serveCmd = &cobra.Command{
	Use:   "servir",
	Short: "Sobe a API HTTP de relatórios",
	RunE:  runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "arquivo de configuração YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log em nível debug")

	reportCmd.Flags().StringVarP(&archivePath, "arquivo", "a", "", "zip com os dados das amostras")
	reportCmd.Flags().IntVarP(&monthLimit, "mes-limite", "m", 0, "mês limite da análise (1-12)")
	reportCmd.Flags().StringArrayVar(&reasons, "motivo", nil, "motivo da coleta a considerar (repetível)")
	reportCmd.Flags().StringVar(&quotaSource, "cotas", "", "URL ou arquivo com as amostras mínimas por município")
	reportCmd.Flags().StringVarP(&outputDir, "saida", "o", "", "pasta de saída")

	rootCmd.AddCommand(reportCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		status.ExitFromError(statusError(err))
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	if archivePath == "" {
		fmt.Println("Por favor, informe um arquivo ZIP (--arquivo) para iniciar a análise.")
		return nil
	}
	if cmd.Flags().Changed("cotas") {
		cfg.Quota.Source = quotaSource
	}
	if cmd.Flags().Changed("saida") {
		cfg.OutputDir = outputDir
	}
	p := Params{MonthLimit: cfg.Report.MonthLimit, Reasons: cfg.Report.Reasons}
	if cmd.Flags().Changed("mes-limite") {
		p.MonthLimit = monthLimit
	}
	if cmd.Flags().Changed("motivo") {
		p.Reasons = reasons
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("error reading archive (%s): %w", archivePath, err)
	}

	reporter := NewReporter(cfg, NewQuotaCache(cfg.Quota, logger), logger)
	rep, err := reporter.Run(cmd.Context(), data, p)
	if err != nil {
		return err
	}

	bundle, err := bundleReport(rep, cfg.OutputDir)
	if err != nil {
		return err
	}

	fmt.Printf("Municípios com indicador ≥ 90%%: %v%%\n", rep.PctMeeting90)
	fmt.Printf("Municípios sem amostras coletadas: %d\n", rep.ZeroSampleCount)
	for _, sc := range rep.StatusCounts {
		fmt.Printf("%s: %d\n", sc.Status, sc.Count)
	}
	fmt.Printf("Relatório: %s\n", bundle)
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	gin.SetMode(gin.ReleaseMode)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quotas := NewQuotaCache(cfg.Quota, logger)
	s := &server{
		reporter:  NewReporter(cfg, quotas, logger),
		quotas:    quotas,
		defaults:  cfg.Report,
		maxUpload: cfg.Server.MaxUploadMB << 20,
		log:       logger,
	}
	return serve(ctx, cfg.Server.Addr, newRouter(s), logger)
}
