package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

type scanResponse struct {
	Merchant    string          `json:"merchant"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Confidence  float64         `json:"confidence"`
}

// parseScanResponse parses the model's JSON response into a Result. The model
// sometimes wraps the object in markdown fences or leading prose, so the
// parser extracts the outermost object first. Values it cannot normalize are
// dropped rather than guessed; review fills the gaps.
func parseScanResponse(text string) (Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return Result{}, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return Result{}, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var resp scanResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return Result{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields := core.Fields{}
	if merchant := strings.TrimSpace(resp.Merchant); merchant != "" {
		fields[core.FieldMerchant] = merchant
	}
	if amount := normalizeAmount(resp.Amount); amount != "" {
		fields[core.FieldAmount] = amount
	}
	if date := normalizeDate(resp.Date); date != "" {
		fields[core.FieldDate] = date
	}
	if category := strings.TrimSpace(resp.Category); category != "" {
		fields[core.FieldCategory] = category
	}
	if description := strings.TrimSpace(resp.Description); description != "" {
		fields[core.FieldDescription] = description
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{Fields: fields, Confidence: confidence}, nil
}

// normalizeAmount accepts the amount as either a JSON string or number and
// returns a canonical decimal string, or "" when unusable.
func normalizeAmount(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || f < 0 {
			return ""
		}
		s = strconv.FormatFloat(f, 'f', 2, 64)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	cents, err := core.ParseAmountCents(s)
	if err != nil {
		return ""
	}
	return core.FormatCents(cents)
}

// normalizeDate converts a handful of common date layouts to YYYY-MM-DD,
// or "" when unparseable. The review creation day covers missing dates.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
