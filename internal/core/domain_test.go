package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return id
}

func TestReviewStatusLifecycle(t *testing.T) {
	tests := []struct {
		status   ReviewStatus
		valid    bool
		terminal bool
	}{
		{ReviewPending, true, false},
		{ReviewApproved, true, true},
		{ReviewRejected, true, true},
		{ReviewStatus("archived"), false, false},
		{ReviewStatus(""), false, false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v, want %v", tt.status, got, tt.valid)
		}
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "2025-01-15", want: "2025-01-15"},
		{input: "2024-02-29", want: "2024-02-29"},
		{input: "2025-02-29", wantErr: true},
		{input: "2025-13-01", wantErr: true},
		{input: "15/01/2025", wantErr: true},
		{input: "2025-1-5", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q) = %v, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDateOfTruncatesToDay(t *testing.T) {
	d := DateOf(time.Date(2025, 1, 20, 23, 59, 59, 0, time.UTC))
	if d.String() != "2025-01-20" {
		t.Errorf("DateOf() = %s, want 2025-01-20", d)
	}
}

func TestDateNext(t *testing.T) {
	tests := []struct {
		in   Date
		want string
	}{
		{NewDate(2025, 1, 31), "2025-02-01"},
		{NewDate(2024, 2, 28), "2024-02-29"},
		{NewDate(2024, 12, 31), "2025-01-01"},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got.String() != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFieldsCloneFiltersUnknownNames(t *testing.T) {
	f := Fields{
		FieldMerchant: "Starbucks",
		"tip":         "1.00",
		"total_tax":   "0.48",
	}

	clone := f.Clone()
	if len(clone) != 1 {
		t.Fatalf("Clone() = %v, want only recognized fields", clone)
	}
	if clone[FieldMerchant] != "Starbucks" {
		t.Errorf("Clone()[merchant] = %q", clone[FieldMerchant])
	}

	clone[FieldMerchant] = "changed"
	if f[FieldMerchant] != "Starbucks" {
		t.Error("Clone() shares storage with original")
	}
}

func TestKnownField(t *testing.T) {
	for _, name := range []string{FieldMerchant, FieldAmount, FieldDate, FieldCategory, FieldDescription} {
		if !KnownField(name) {
			t.Errorf("KnownField(%q) = false", name)
		}
	}
	for _, name := range []string{"", "tip", "Merchant", "AMOUNT"} {
		if KnownField(name) {
			t.Errorf("KnownField(%q) = true", name)
		}
	}
}
