package core

import (
	"errors"
	"testing"
)

func TestParseAmountCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "integer", input: "12", want: 1200},
		{name: "two decimals", input: "12.45", want: 1245},
		{name: "one decimal", input: "12.4", want: 1240},
		{name: "comma separator", input: "12,45", want: 1245},
		{name: "leading dot", input: ".75", want: 75},
		{name: "trailing dot", input: "12.", want: 1200},
		{name: "zero", input: "0", want: 0},
		{name: "whitespace trimmed", input: "  5.75  ", want: 575},
		{name: "three decimals rejected", input: "12.455", wantErr: true},
		{name: "non numeric", input: "abc", wantErr: true},
		{name: "mixed digits", input: "12a.45", wantErr: true},
		{name: "negative rejected", input: "-5", wantErr: true},
		{name: "plus sign rejected", input: "+5", wantErr: true},
		{name: "two dots", input: "1.2.3", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "bare dot", input: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmountCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmountCents(%q) = %d, want error", tt.input, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ParseAmountCents(%q) error = %v, want ErrValidation", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmountCents(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmountCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{75, "0.75"},
		{575, "5.75"},
		{1245, "12.45"},
		{100000, "1000.00"},
	}

	for _, tt := range tests {
		if got := FormatCents(tt.cents); got != tt.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 575, 123456} {
		got, err := ParseAmountCents(FormatCents(cents))
		if err != nil {
			t.Fatalf("round trip %d: %v", cents, err)
		}
		if got != cents {
			t.Errorf("round trip %d = %d", cents, got)
		}
	}
}
