package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

const (
	ReimbursementPending    ReimbursementStatus = "pending"
	ReimbursementApproved   ReimbursementStatus = "approved"
	ReimbursementReimbursed ReimbursementStatus = "reimbursed"
)

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
)

// Recognized review field names. Edits targeting anything else are rejected.
const (
	FieldMerchant    = "merchant"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldCategory    = "category"
	FieldDescription = "description"
)

// UncategorizedName is the fallback category for expenses finalized without one.
const UncategorizedName = "Uncategorized"

// UnknownMerchant is the fallback merchant for expenses finalized without one.
const UnknownMerchant = "Unknown Merchant"

type (
	ReviewStatus        string
	ReimbursementStatus string
	VerificationStatus  string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Fields holds review field values keyed by recognized field name.
	Fields map[string]string

	// ReviewEntry is one uploaded receipt moving through review.
	// Extracted is the machine output and never changes after creation;
	// Reviewed starts as a copy of it and absorbs reviewer edits while
	// the entry is pending.
	ReviewEntry struct {
		ID         uuid.UUID
		Filename   string
		FileType   string
		CreatedAt  time.Time
		Confidence float64
		Extracted  Fields
		Reviewed   Fields
		Status     ReviewStatus
		ExpenseID  *int64
	}

	// ExpenseRecord is a finalized ledger entry.
	ExpenseRecord struct {
		ID            int64
		Merchant      string
		Amount        Money
		Date          Date
		Category      string
		Description   string
		Reimbursement ReimbursementStatus
		Verification  VerificationStatus
		ReceiptID     *uuid.UUID
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Category is one entry of the externally supplied taxonomy.
	Category struct {
		ID        int64
		Name      string
		Color     string
		CreatedAt time.Time
	}

	// ReviewStats summarizes review entry counts by lifecycle state.
	ReviewStats struct {
		Total        int
		Pending      int
		Approved     int
		Rejected     int
		ApprovalRate float64 // percent of total, 0 when total is 0
	}
)

// Error kinds surfaced by the core. Layers wrap these with context via %w
// or errors.Join; callers branch with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrUnknownField    = errors.New("unknown field")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidArgument = errors.New("invalid argument")
)

var knownFields = map[string]bool{
	FieldMerchant:    true,
	FieldAmount:      true,
	FieldDate:        true,
	FieldCategory:    true,
	FieldDescription: true,
}

// KnownField reports whether name belongs to the recognized review field set.
func KnownField(name string) bool {
	return knownFields[name]
}

// Clone returns an independent copy, keeping only recognized field names.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if knownFields[k] {
			out[k] = v
		}
	}
	return out
}

// Terminal reports whether no transition leaves the status.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

func (s ReimbursementStatus) Valid() bool {
	switch s {
	case ReimbursementPending, ReimbursementApproved, ReimbursementReimbursed:
		return true
	}
	return false
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified:
		return true
	}
	return false
}

// NewDate creates a Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date{Time: d.AddDate(0, 0, 1)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return errors.Join(ErrValidation, errors.New("amount must be positive"))
	}
	return nil
}

func (e ExpenseRecord) Validate() error {
	if strings.TrimSpace(e.Merchant) == "" {
		return errors.Join(ErrValidation, errors.New("empty merchant"))
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return errors.Join(ErrValidation, errors.New("date cannot be zero"))
	}
	if strings.TrimSpace(e.Category) == "" {
		return errors.Join(ErrValidation, errors.New("empty category"))
	}
	if len(e.Description) > 500 {
		return errors.Join(ErrValidation, errors.New("description too long (max 500 characters)"))
	}
	if !e.Reimbursement.Valid() {
		return errors.Join(ErrValidation, errors.New("invalid reimbursement status"))
	}
	if !e.Verification.Valid() {
		return errors.Join(ErrValidation, errors.New("invalid verification status"))
	}
	return nil
}
