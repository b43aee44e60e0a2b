// This file implements parsing and validation of request parameters for the
// training and forecast endpoints. Malformed values become validation errors so
// they map to 422 like the ones raised deeper in the stack.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashcast/internal/core"
	"cashcast/internal/services"
)

const (
	DefaultDailyHorizon   = 30
	DefaultMonthlyHorizon = 6
	maxBodyBytes          = 1 << 16
)

// RequestBodyParser reads a JSON or form-encoded body once and serves its fields as strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

// valueSource is satisfied by url.Values and *RequestBodyParser.
type valueSource interface {
	Get(key string) string
}

func parseInt(src valueSource, field string, def int) (int, error) {
	raw := src.Get(field)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return v, nil
}

func parseAccountID(src valueSource) (*int64, error) {
	raw := src.Get("account_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &core.ValidationError{Field: "account_id", Reason: fmt.Sprintf("%q is not a positive integer", raw)}
	}
	return &id, nil
}

func parseBool(src valueSource, field string) (bool, error) {
	raw := src.Get(field)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &core.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a boolean", raw)}
	}
	return v, nil
}

// trainParams is a parsed POST /train/{granularity} request.
type trainParams struct {
	Request services.TrainRequest
	Async   bool
}

// ParseTrainRequest reads the granularity from the path and the options from the
// body, falling back to the query string for fields the body does not set.
func ParseTrainRequest(r *http.Request) (trainParams, error) {
	g, err := core.ParseGranularity(r.PathValue("granularity"))
	if err != nil {
		return trainParams{}, err
	}

	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		return trainParams{}, &core.ValidationError{Field: "body", Reason: "malformed request body"}
	}
	src := firstOf{body, r.URL.Query()}

	var out trainParams
	out.Request.Granularity = g
	if out.Request.AccountID, err = parseAccountID(src); err != nil {
		return trainParams{}, err
	}
	if out.Request.Lags, err = parseInt(src, "lags", 0); err != nil {
		return trainParams{}, err
	}
	if out.Request.Force, err = parseBool(src, "force"); err != nil {
		return trainParams{}, err
	}
	if out.Async, err = parseBool(src, "async"); err != nil {
		return trainParams{}, err
	}
	return out, nil
}

// ParseTransaction reads a transaction from a JSON or form-encoded body. The amount
// is a positive decimal in currency units with a dot or comma separator.
func ParseTransaction(r *http.Request) (core.Transaction, error) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "body", Reason: "malformed request body"}
	}

	date, err := core.ParseDay(body.Get("date"))
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD", Err: err}
	}
	cents, err := core.ParseDecimalToCents(body.Get("amount"))
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Reason: err.Error(), Err: core.ErrInvalidAmount}
	}
	accountID, err := parseAccountID(body)
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		Date:        date,
		Competency:  body.Get("competency"),
		Kind:        core.TxKind(strings.ToLower(body.Get("kind"))),
		Category:    body.Get("category"),
		Description: body.Get("description"),
		Amount:      core.Money{Cents: cents},
		AccountID:   accountID,
	}, nil
}

// ParseForecastQuery reads a forecast request from the query string.
func ParseForecastQuery(g core.Granularity, query url.Values) (services.ForecastQuery, error) {
	def := DefaultDailyHorizon
	if g == core.Monthly {
		def = DefaultMonthlyHorizon
	}

	var q services.ForecastQuery
	var err error
	if q.Horizon, err = parseInt(query, "horizon", def); err != nil {
		return q, err
	}
	if q.Lags, err = parseInt(query, "lags", 0); err != nil {
		return q, err
	}
	if q.TopK, err = parseInt(query, "top_k", 0); err != nil {
		return q, err
	}
	if q.AccountID, err = parseAccountID(query); err != nil {
		return q, err
	}
	q.Anchor = sanitizeInput(query.Get("anchor"))
	return q, nil
}

// firstOf returns the first non-empty value among its sources.
type firstOf []valueSource

func (f firstOf) Get(key string) string {
	for _, src := range f {
		if v := src.Get(key); v != "" {
			return v
		}
	}
	return ""
}
