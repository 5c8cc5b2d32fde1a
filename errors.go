package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dadosjusbr/status"
)

// Códigos de saída do CLI, um por tipo de erro.
const (
	exitValidation  = 2
	exitFormat      = 3
	exitParse       = 4
	exitComputation = 5
	exitFetch       = 6
)

// FormatError reports a bad archive: not a zip, wrong number of CSV entries,
// malformed rows or undecodable text.
type FormatError struct {
	Entry string // entrada do zip, quando conhecida
	Line  int
	Err   error
}

func (e *FormatError) Error() string {
	switch {
	case e.Entry != "" && e.Line > 0:
		return fmt.Sprintf("format error in %s (line %d): %v", e.Entry, e.Line, e.Err)
	case e.Entry != "":
		return fmt.Sprintf("format error in %s: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("format error: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseError reports a field that could not be interpreted, such as a
// collection date or a quota value.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %q (value %q): %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports invalid parameters or a missing required column.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ComputationError reports an anomaly while evaluating compliance.
type ComputationError struct {
	Municipality string
	Err          error
}

func (e *ComputationError) Error() string {
	if e.Municipality == "" {
		return fmt.Sprintf("computation error: %v", e.Err)
	}
	return fmt.Sprintf("computation error for %s: %v", e.Municipality, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// FetchError reports a failure retrieving the quota reference.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching quota reference (%s): %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var (
	errNoCSVEntry       = errors.New("zip archive has no .csv entry")
	errManyCSVEntries   = errors.New("zip archive has more than one .csv entry")
	errEmptyCSV         = errors.New("csv file is empty")
	errEmptyHeader      = errors.New("csv header has an empty column name")
	errDuplicateHeader  = errors.New("csv header repeats a column name")
	errZeroRequired     = errors.New("minimum required samples is zero")
	errInvalidQuota     = errors.New("minimum monthly quota must be a finite non-negative number")
	errZeroDenominator  = errors.New("percentage denominator is zero")
	errNoQuotaSource    = errors.New("no quota reference source configured")
	errMissingQuotaCols = errors.New("quota reference lacks the required columns")
)

// statusError embrulha o erro com o código de saída correspondente ao seu tipo.
func statusError(err error) error {
	var (
		fe *FormatError
		pe *ParseError
		ve *ValidationError
		ce *ComputationError
		xe *FetchError
	)
	switch {
	case errors.As(err, &ve):
		return status.NewError(exitValidation, err)
	case errors.As(err, &fe):
		return status.NewError(exitFormat, err)
	case errors.As(err, &pe):
		return status.NewError(exitParse, err)
	case errors.As(err, &ce):
		return status.NewError(exitComputation, err)
	case errors.As(err, &xe):
		return status.NewError(exitFetch, err)
	}
	return status.NewError(status.Unknown, err)
}

// APIError is the JSON body returned by the HTTP API on failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Códigos de erro da API.
const (
	ErrorCodeFormat      = "FORMAT_ERROR"
	ErrorCodeParse       = "PARSE_ERROR"
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeComputation = "COMPUTATION_ERROR"
	ErrorCodeFetch       = "QUOTA_FETCH_ERROR"
	ErrorCodeInternal    = "INTERNAL_SERVER_ERROR"
)

// apiError maps err to an HTTP status and the body sent to the client.
func apiError(err error) (int, APIError) {
	var (
		fe *FormatError
		pe *ParseError
		ve *ValidationError
		ce *ComputationError
		xe *FetchError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIError{Code: ErrorCodeValidation, Message: err.Error()}
	case errors.As(err, &fe):
		return http.StatusBadRequest, APIError{Code: ErrorCodeFormat, Message: err.Error()}
	case errors.As(err, &pe):
		return http.StatusBadRequest, APIError{Code: ErrorCodeParse, Message: err.Error()}
	case errors.As(err, &ce):
		return http.StatusUnprocessableEntity, APIError{Code: ErrorCodeComputation, Message: err.Error()}
	case errors.As(err, &xe):
		return http.StatusBadGateway, APIError{Code: ErrorCodeFetch, Message: err.Error()}
	}
	return http.StatusInternalServerError, APIError{Code: ErrorCodeInternal, Message: err.Error()}
}
