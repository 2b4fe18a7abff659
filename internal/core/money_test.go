package core

import "testing"

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
		{"1.234,56", 123456, true},
		{"1,234.56", 123456, true},
		{"1.234.567", 123456700, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1,2,3.4.5", 0, false},
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

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		m     Money
		plain string
		brl   string
	}{
		{Money{Cents: 15050}, "150.50", "R$ 150,50"},
		{Money{Cents: 123456}, "1234.56", "R$ 1.234,56"},
		{Money{Cents: 0}, "0.00", "R$ 0,00"},
		{Money{Cents: -990}, "-9.90", "-R$ 9,90"},
	}
	for _, tc := range cases {
		if got := tc.m.String(); got != tc.plain {
			t.Errorf("String(%d) = %q, want %q", tc.m.Cents, got, tc.plain)
		}
		if got := tc.m.FormatBRL(); got != tc.brl {
			t.Errorf("FormatBRL(%d) = %q, want %q", tc.m.Cents, got, tc.brl)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 1000}
	b := Money{Cents: 250}
	if got := a.Add(b); got.Cents != 1250 {
		t.Fatalf("Add = %d", got.Cents)
	}
	if got := b.Sub(a); got.Cents != -750 {
		t.Fatalf("Sub = %d", got.Cents)
	}
	if got := a.Float(); got != 10.0 {
		t.Fatalf("Float = %v", got)
	}
}
