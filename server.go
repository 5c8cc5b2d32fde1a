package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Campos do formulário de envio.
const (
	formArchive    = "arquivo"
	formMonthLimit = "mes_limite"
	formReasons    = "motivos"
)

// server exposes the report pipeline over HTTP.
type server struct {
	reporter  *Reporter
	quotas    *QuotaCache
	defaults  ReportConfig
	maxUpload int64
	log       *zap.Logger
}

func newRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := router.Group("/api/v1")
	{
		v1.POST("/relatorios", s.createReport)
		v1.POST("/cotas/recarregar", s.reloadQuotas)
	}
	return router
}

func (s *server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("metodo", c.Request.Method),
			zap.String("rota", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duracao", time.Since(start)))
	}
}

// createReport recebe um zip e devolve o relatório em JSON.
func (s *server) createReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fh, err := c.FormFile(formArchive)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, APIError{
				Code:    ErrorCodeValidation,
				Message: fmt.Sprintf("upload exceeds %d bytes", s.maxUpload),
			})
			return
		}
		c.JSON(http.StatusBadRequest, APIError{
			Code:    ErrorCodeValidation,
			Message: "Por favor, envie um arquivo ZIP no campo \"arquivo\" para iniciar a análise.",
		})
		return
	}

	p, err := s.params(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("error opening upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, fmt.Errorf("error reading upload: %w", err))
		return
	}

	rep, err := s.reporter.Run(c.Request.Context(), data, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// params lê mês limite e motivos do formulário, com os padrões da configuração.
func (s *server) params(c *gin.Context) (Params, error) {
	p := Params{MonthLimit: s.defaults.MonthLimit, Reasons: s.defaults.Reasons}
	if v, ok := c.GetPostForm(formMonthLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, &ValidationError{Field: formMonthLimit, Msg: fmt.Sprintf("%q is not an integer", v)}
		}
		p.MonthLimit = n
	}
	if reasons := c.PostFormArray(formReasons); len(reasons) > 0 {
		p.Reasons = reasons
	}
	return p, validateParams(p)
}

func (s *server) reloadQuotas(c *gin.Context) {
	s.quotas.Invalidate()
	c.Status(http.StatusNoContent)
}

func (s *server) fail(c *gin.Context, err error) {
	code, body := apiError(err)
	s.log.Warn("report failed", zap.Int("status", code), zap.Error(err))
	c.JSON(code, body)
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("endereco", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}
