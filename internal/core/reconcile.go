// Reconciliation of machine-extracted receipt fields with reviewer edits.
//
// MergeFields and Finalize are pure: they never mutate their input entry and
// produce the same output for the same input. The state transition itself is
// applied by the caller inside a storage transaction.
package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MergeFields validates a batch of reviewer edits against entry and returns
// the reviewed field set with every edit applied. The batch is atomic: one
// invalid field rejects the whole batch and the entry's data is untouched
// (the input is never modified either way).
func MergeFields(entry ReviewEntry, edits map[string]string) (Fields, error) {
	if entry.Status != ReviewPending {
		return nil, fmt.Errorf("%w: review is %s", ErrInvalidState, entry.Status)
	}
	merged := entry.Reviewed.Clone()
	for name, value := range edits {
		if !KnownField(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if err := validateFieldValue(name, value); err != nil {
			return nil, err
		}
		merged[name] = strings.TrimSpace(value)
	}
	return merged, nil
}

func validateFieldValue(name, value string) error {
	value = strings.TrimSpace(value)
	switch name {
	case FieldAmount:
		if value == "" {
			return nil
		}
		if _, err := ParseAmountCents(value); err != nil {
			return fmt.Errorf("amount %q: %w", value, err)
		}
	case FieldDate:
		if value == "" {
			return nil
		}
		if _, err := ParseDate(value); err != nil {
			return errors.Join(ErrValidation, fmt.Errorf("date %q: want YYYY-MM-DD", value))
		}
	}
	return nil
}

// Finalize converts the entry's reviewed data into an expense record payload,
// applying the approval-time defaults: blank merchant becomes UnknownMerchant,
// a missing date falls back to the entry's creation day, a missing category
// becomes UncategorizedName and a missing description the empty string. The
// amount is mandatory and must be positive. A category that is set but not in
// the supplied taxonomy (and not UncategorizedName) fails validation.
//
// The returned record carries no ID; the ledger assigns one on insert.
func Finalize(entry ReviewEntry, categories []string) (ExpenseRecord, error) {
	data := entry.Reviewed

	amountStr := strings.TrimSpace(data[FieldAmount])
	if amountStr == "" {
		return ExpenseRecord{}, errors.Join(ErrValidation, errors.New("amount is mandatory"))
	}
	cents, err := ParseAmountCents(amountStr)
	if err != nil {
		return ExpenseRecord{}, err
	}
	if cents <= 0 {
		return ExpenseRecord{}, errors.Join(ErrValidation, errors.New("amount must be positive"))
	}

	merchant := strings.TrimSpace(data[FieldMerchant])
	if merchant == "" {
		merchant = UnknownMerchant
	}

	date := DateOf(entry.CreatedAt)
	if ds := strings.TrimSpace(data[FieldDate]); ds != "" {
		date, err = ParseDate(ds)
		if err != nil {
			return ExpenseRecord{}, errors.Join(ErrValidation, fmt.Errorf("date %q: want YYYY-MM-DD", ds))
		}
	}

	category := strings.TrimSpace(data[FieldCategory])
	if category == "" {
		category = UncategorizedName
	} else if category != UncategorizedName && !slices.Contains(categories, category) {
		return ExpenseRecord{}, errors.Join(ErrValidation, fmt.Errorf("category %q not in taxonomy", category))
	}

	receiptID := entry.ID
	return ExpenseRecord{
		Merchant:      merchant,
		Amount:        Money{Cents: cents},
		Date:          date,
		Category:      category,
		Description:   strings.TrimSpace(data[FieldDescription]),
		Reimbursement: ReimbursementPending,
		Verification:  VerificationVerified,
		ReceiptID:     &receiptID,
	}, nil
}
