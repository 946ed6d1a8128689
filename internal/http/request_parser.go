// This file turns submitted forms (or JSON bodies sent by HTMX's json-enc
// extension) into domain inputs. Partial updates only carry the keys that
// were actually submitted.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgets/internal/core"
)

const maxBodyBytes = 1 << 20

// formValues returns the request body as url.Values for both form and JSON
// submissions.
func formValues(r *http.Request) (url.Values, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	values := url.Values{}
	if len(body) == 0 {
		return values, nil
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	for k, v := range data {
		if v == nil {
			continue
		}
		values.Set(k, stringValue(v))
	}
	return values, nil
}

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

// field returns a trimmed value with control characters removed.
func field(v url.Values, key string) string {
	return sanitizeInput(v.Get(key))
}

// optional returns a pointer to the value of key, or nil when key was not
// submitted.
func optional(v url.Values, key string) *string {
	if !v.Has(key) {
		return nil
	}
	s := field(v, key)
	return &s
}

func parseAmount(fieldName, raw string) (core.Money, error) {
	m, err := core.ParseMoney(raw)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return core.Money{}, core.Invalid(fieldName, "must be a number like 12.50")
		}
		return core.Money{}, err
	}
	return m, nil
}

// parsePlanned treats an empty planned amount as zero.
func parsePlanned(raw string) (core.Money, error) {
	if raw == "" {
		return core.Money{}, nil
	}
	return parseAmount("planned", raw)
}

func parseNewCategory(v url.Values) (core.NewCategory, error) {
	kind, err := core.ParseCategoryKind(field(v, "kind"))
	if err != nil {
		return core.NewCategory{}, err
	}
	planned, err := parsePlanned(field(v, "planned"))
	if err != nil {
		return core.NewCategory{}, err
	}
	return core.NewCategory{Name: field(v, "name"), Kind: kind, Planned: planned}, nil
}

func parseCategoryPatch(v url.Values) (core.CategoryPatch, error) {
	var p core.CategoryPatch
	p.Name = optional(v, "name")
	if raw := optional(v, "kind"); raw != nil {
		kind, err := core.ParseCategoryKind(*raw)
		if err != nil {
			return p, err
		}
		p.Kind = &kind
	}
	if raw := optional(v, "planned"); raw != nil {
		planned, err := parsePlanned(*raw)
		if err != nil {
			return p, err
		}
		p.Planned = &planned
	}
	return p, nil
}

func parseDay(raw string) (int, error) {
	day, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Invalid("postedDay", "must be a day of the month")
	}
	return day, nil
}

// parseNewEntry reads name, amount and either postedDate (YYYY-MM-DD) or
// postedDay.
func parseNewEntry(v url.Values) (core.NewEntry, error) {
	amount, err := parseAmount("amount", field(v, "amount"))
	if err != nil {
		return core.NewEntry{}, err
	}
	in := core.NewEntry{
		Name:       field(v, "name"),
		PostedDate: field(v, "postedDate"),
		Amount:     amount,
	}
	if in.PostedDate == "" {
		day, err := parseDay(field(v, "postedDay"))
		if err != nil {
			return core.NewEntry{}, err
		}
		in.PostedDay = day
	}
	return in, nil
}

// parseEntryPatch ignores postedDay when a postedDate is submitted, so the
// day always follows the date.
func parseEntryPatch(v url.Values) (core.EntryPatch, error) {
	var p core.EntryPatch
	p.Name = optional(v, "name")
	p.PostedDate = optional(v, "postedDate")
	dated := p.PostedDate != nil && *p.PostedDate != ""
	if raw := optional(v, "postedDay"); raw != nil && *raw != "" && !dated {
		day, err := parseDay(*raw)
		if err != nil {
			return p, err
		}
		p.PostedDay = &day
	}
	if raw := optional(v, "amount"); raw != nil {
		amount, err := parseAmount("amount", *raw)
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}
	return p, nil
}

func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
