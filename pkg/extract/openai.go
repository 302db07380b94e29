package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

const openAIURL = "https://api.openai.com/v1/chat/completions"
const defaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = `You extract structured data from Vietnamese financial documents.
Respond with a single JSON object using exactly these keys:
document_type (INVOICE, BANK_TRANSACTION, TAX_DOCUMENT or OTHER_FINANCIAL),
document_number, date (yyyy-mm-dd), entity_name, entity_tax_number,
counterparty_name, counterparty_tax_number,
payment_method (bank_transfer, cash or others),
amount_before_tax, tax_rate, tax_amount, total_amount (numbers, no separators),
description (short summary of the goods or services).
The entity is the party that issued the document. Use empty strings and 0
for anything the document does not state.`

// OpenAIOptions configures the model backed extractor.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAI asks a chat completion model to read a document. It is optional:
// without an API key the pipeline runs on rules alone.
type OpenAI struct {
	opts   OpenAIOptions
	client *http.Client
	logger *log.Logger
}

func NewOpenAI(opts OpenAIOptions, logger *log.Logger) (*OpenAI, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided (set openai.api_key or OPENAI_API_KEY)")
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = openAIURL
	}
	return &OpenAI{
		opts:   opts,
		client: &http.Client{Timeout: 90 * time.Second},
		logger: logger,
	}, nil
}

// Extract sends the document text to the model and parses the JSON reply.
func (o *OpenAI) Extract(ctx context.Context, text string) (*models.Document, error) {
	o.logger.Debug("sending document to model", "model", o.opts.Model, "chars", len(text))
	return o.complete(ctx, text)
}

// ExtractImage sends a rasterized page to the model. Scanned PDFs have no
// text layer, so the image is the only thing to read.
func (o *OpenAI) ExtractImage(ctx context.Context, png []byte) (*models.Document, error) {
	o.logger.Debug("sending page image to model", "model", o.opts.Model, "bytes", len(png))
	content := []map[string]any{
		{"type": "text", "text": "Extract the document fields from this scanned page."},
		{"type": "image_url", "image_url": map[string]string{
			"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		}},
	}
	return o.complete(ctx, content)
}

func (o *OpenAI) complete(ctx context.Context, userContent any) (*models.Document, error) {
	body, _ := json.Marshal(map[string]any{
		"model":       o.opts.Model,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userContent},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("could not parse OpenAI response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("OpenAI error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return parseModelReply(result.Choices[0].Message.Content)
}

// parseModelReply reads the JSON object out of a model reply, tolerating
// markdown code fences around it.
func parseModelReply(content string) (*models.Document, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var fields struct {
		DocumentType          string     `json:"document_type"`
		DocumentNumber        string     `json:"document_number"`
		Date                  string     `json:"date"`
		EntityName            string     `json:"entity_name"`
		EntityTaxNumber       string     `json:"entity_tax_number"`
		CounterpartyName      string     `json:"counterparty_name"`
		CounterpartyTaxNumber string     `json:"counterparty_tax_number"`
		PaymentMethod         string     `json:"payment_method"`
		AmountBeforeTax       flexNumber `json:"amount_before_tax"`
		TaxRate               flexNumber `json:"tax_rate"`
		TaxAmount             flexNumber `json:"tax_amount"`
		TotalAmount           flexNumber `json:"total_amount"`
		Description           string     `json:"description"`
	}
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("model reply is not the expected JSON: %w", err)
	}

	doc := &models.Document{
		Type:                  models.DocumentType(strings.ToUpper(strings.TrimSpace(fields.DocumentType))),
		Number:                strings.TrimSpace(fields.DocumentNumber),
		EntityName:            strings.TrimSpace(fields.EntityName),
		EntityTaxNumber:       models.NormalizeTaxNumber(fields.EntityTaxNumber),
		CounterpartyName:      strings.TrimSpace(fields.CounterpartyName),
		CounterpartyTaxNumber: models.NormalizeTaxNumber(fields.CounterpartyTaxNumber),
		PaymentMethod:         normalizePayment(fields.PaymentMethod),
		Description:           strings.TrimSpace(fields.Description),
		Direction:             models.DirectionUnknown,
	}

	switch doc.Type {
	case models.DocInvoice, models.DocBankTransaction, models.DocTaxDocument, models.DocOtherFinancial:
	default:
		doc.Type = models.DocOtherFinancial
	}

	if fields.Date != "" {
		if t, err := parseDate(fields.Date); err == nil {
			doc.Date = t
		}
	}
	doc.AmountBeforeTax = float64(fields.AmountBeforeTax)
	doc.TaxAmount = float64(fields.TaxAmount)
	doc.TotalAmount = float64(fields.TotalAmount)
	doc.TaxRate = float64(fields.TaxRate)
	if doc.TaxRate > 1 {
		doc.TaxRate = doc.TaxRate / 100
	}

	return doc, nil
}

func normalizePayment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bank_transfer", "cash":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return "others"
	}
}

// flexNumber reads a JSON number whether the model sent it as a number or
// as a quoted string with separators.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v, err = parseAmount(s)
		if err != nil {
			return fmt.Errorf("unrecognized number %q", s)
		}
	}
	*f = flexNumber(v)
	return nil
}
