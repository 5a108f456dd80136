package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const receiptScanPrompt = `Analyze this receipt image and extract the following
information as a JSON object with exactly these keys:
{
  "merchant": "store or vendor name",
  "amount": "total amount as a decimal string, e.g. 12.45",
  "date": "purchase date in YYYY-MM-DD format",
  "category": "one of the provided category names, or empty if unsure",
  "description": "short free-text summary of the purchase",
  "confidence": 0.0
}
confidence is your overall confidence in the extraction between 0 and 1.
Leave any value you cannot read as an empty string. Respond with JSON only.`

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// ScanReceipt analyzes a receipt image and extracts candidate fields
func (g *Gemini) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// genai.ImageData expects just the format suffix ("jpeg"), not the full
	// MIME type ("image/jpeg")
	format := "jpeg"
	if s := strings.TrimPrefix(contentType, "image/"); s != "" && s != contentType {
		format = s
	}

	parts := []genai.Part{
		genai.ImageData(format, imageData),
		genai.Text(receiptScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Result{}, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result, err := parseScanResponse(responseText.String())
	if err != nil {
		return Result{}, fmt.Errorf("parsing receipt data: %w", err)
	}

	return result, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
