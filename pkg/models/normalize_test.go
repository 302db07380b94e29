package models

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"folds diacritics", "Công Ty TNHH Thương Mại", "CONG TY TNHH THUONG MAI"},
		{"folds dj", "Công ty Điện lực", "CONG TY DIEN LUC"},
		{"collapses whitespace", "  CONG  TY\tABC ", "CONG TY ABC"},
		{"already plain", "ACME LTD", "ACME LTD"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTaxNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0312 345 678", "0312345678"},
		{"0312345678-001", "0312345678-001"},
		{"MST: 0312.345.678", "0312345678"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTaxNumber(tt.input); got != tt.want {
			t.Errorf("NormalizeTaxNumber(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
