// Package http provides the JSON API over the delivery dashboard.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// maxBodyBytes bounds request bodies; a record is a few hundred bytes.
const maxBodyBytes = 64 << 10

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now
// as the default. Out-of-range values are an error.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}

	return params, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
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

	// Try JSON first if content looks like JSON. Numbers are kept as their
	// literal text so large amounts are parsed exactly.
	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			p.jsonData = nil
			p.err = errors.New("unexpected data after JSON object")
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
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

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseRecordInput reads a record from a JSON or form body. Amounts accept
// grouping separators ("12,000"); an empty delivery count means the default.
func ParseRecordInput(p *RequestBodyParser) (core.RecordInput, error) {
	if err := p.Parse(); err != nil {
		return core.RecordInput{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.RecordInput{}, err
	}
	count, err := core.ParseDeliveryCount(p.Get("deliveryCount"))
	if err != nil {
		return core.RecordInput{}, err
	}

	return core.RecordInput{
		Date:          p.Get("date"),
		Platform:      core.Platform(strings.ToLower(p.Get("platform"))),
		DeliveryCount: count,
		Amount:        amount,
		Memo:          p.Get("memo"),
	}, nil
}

// ParseGoalAmount reads {"amount": ...} or amount=... for PUT /goal.
func ParseGoalAmount(p *RequestBodyParser) (int64, error) {
	if err := p.Parse(); err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return core.ParseAmount(p.Get("amount"))
}
