// Package http serves the JSON API.
//
// This file implements utilities for parsing request bodies and query
// parameters into domain input.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tally/internal/core"
)

// maxBodyBytes bounds expense payloads.
const maxBodyBytes = 64 << 10

var (
	errMalformedBody   = errors.New("malformed request body")
	errInvalidPage     = errors.New("invalid page")
	errInvalidCategory = errors.New("invalid category filter")
)

// RequestBodyParser reads a body once and exposes its fields whether it
// was sent as JSON or as a form.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of r's body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
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
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}
	if trimmed[0] == '[' {
		p.err = errors.New("expected an object")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a field with control characters removed. The value is not
// trimmed so length validation sees what the user typed.
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

// Bool reads a checkbox-style field: true, "true", "on" or "1".
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(p.Get(key))) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// ParseExpenseInput decodes the expense form. Only malformed bodies fail
// here; field rules are checked by core.ExpenseInput.Parse.
func ParseExpenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.ExpenseInput{}, errMalformedBody
	}
	return core.ExpenseInput{
		Description: p.Get("description"),
		Amount:      strings.TrimSpace(p.Get("amount")),
		Category:    strings.TrimSpace(p.Get("category")),
		ExpenseDate: strings.TrimSpace(p.Get("expenseDate")),
		IsRecurring: p.Bool("isRecurring"),
	}, nil
}

// ParseListParams reads ?page= and ?category= for the expense list.
// A missing page is page 1; a page below 1 is clamped to 1.
func ParseListParams(query url.Values) (int, *core.Category, error) {
	page := 1
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, nil, errInvalidPage
		}
		page = max(n, 1)
	}

	v := strings.TrimSpace(query.Get("category"))
	if v == "" || strings.EqualFold(v, "all") {
		return page, nil, nil
	}
	c, ok := core.ParseCategory(v)
	if !ok {
		return 0, nil, errInvalidCategory
	}
	return page, &c, nil
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

// sanitizeInput removes control characters except tab, newline and
// carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
