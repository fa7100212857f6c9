package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"15000", 1500000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 1500000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "15000" {
		t.Fatalf("expected 15000, got %s", b)
	}

	cases := []struct {
		in   string
		want int64
	}{
		{`15000`, 1500000},
		{`"12.5"`, 1250},
		{`"12,34"`, 1234},
		{`" 2.50 "`, 250},
		{`0.015`, 2},
		{`-35`, -3500},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Fatalf("%s: expected %d cents, got %d", tc.in, tc.want, m.Cents)
		}
	}

	for _, in := range []string{`"abc"`, `"-1"`, `"0"`, `"1e3"`, `""`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%s: expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	revenue := Money{Cents: 5000000}
	expenses := Money{Cents: 1500000}
	if got := revenue.Sub(expenses); got.Cents != 3500000 {
		t.Fatalf("expected 3500000, got %d", got.Cents)
	}
	if got := expenses.Sub(revenue); got.Cents != -3500000 {
		t.Fatalf("profit must be allowed to go negative, got %d", got.Cents)
	}
	if got := NewMoney(150.5); got.Cents != 15050 {
		t.Fatalf("expected 15050, got %d", got.Cents)
	}
	if got := (Money{Cents: 15050}).String(); got != "150.5" {
		t.Fatalf("expected 150.5, got %s", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}
