package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"farmbook/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string // non-empty means a ValidationError on this field
		wantBad   bool
	}{
		{name: "valid", body: `{"name":"North Field","season":"2024"}`},
		{name: "empty body", body: ``, wantBad: true},
		{name: "syntax error", body: `{"name":`, wantBad: true},
		{name: "trailing data", body: `{"name":"a"} {"name":"b"}`, wantBad: true},
		{name: "wrong type", body: `{"areaHa":"big"}`, wantField: "areaHa"},
		{name: "bad date", body: `{"plantingDate":"2024-13-40"}`, wantField: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Name         string    `json:"name"`
				Season       string    `json:"season"`
				AreaHa       *float64  `json:"areaHa"`
				PlantingDate core.Date `json:"plantingDate"`
			}
			err := decodeJSON(httptest.NewRecorder(), r, &dst)

			var ve *core.ValidationError
			var bad *badRequestError
			switch {
			case tt.wantField != "":
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Fatalf("expected validation error on %q, got %v", tt.wantField, err)
				}
			case tt.wantBad:
				if !errors.As(err, &bad) {
					t.Fatalf("expected malformed body error, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Name != "North Field" {
					t.Errorf("Name = %q", dst.Name)
				}
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst map[string]any

	var bad *badRequestError
	if err := decodeJSON(httptest.NewRecorder(), r, &dst); !errors.As(err, &bad) {
		t.Fatalf("expected malformed body error, got %v", err)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", tt.raw)
		got, err := pathID(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("pathID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, core.ErrValidation) {
			t.Errorf("pathID(%q) error should be a validation error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("pathID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestQueryBool(t *testing.T) {
	tests := map[string]bool{
		"/?reset=true": true,
		"/?reset=1":    true,
		"/?reset=no":   false,
		"/?reset=":     false,
		"/":            false,
	}
	for target, want := range tests {
		r := httptest.NewRequest(http.MethodPost, target, nil)
		if got := queryBool(r, "reset"); got != want {
			t.Errorf("queryBool(%s) = %v, want %v", target, got, want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"  Wanjiku  ", "Wanjiku"},
		{"line1\nline2", "line1\nline2"},
		{"bad\x00null\x07bell", "badnullbell"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
