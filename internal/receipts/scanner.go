// Package receipts extracts draft transactions from receipt images using a
// multimodal model.
package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/ai"
	"github.com/Gargee-Buva/Finora/internal/gcs"
	"github.com/Gargee-Buva/Finora/internal/insights"
	"github.com/Gargee-Buva/Finora/internal/ledger"
)

// ErrIncompleteReceipt is returned when the model could not read an amount or
// a date from the receipt.
var ErrIncompleteReceipt = errors.New("receipt missing required information")

const defaultTitle = "Receipt"

// Draft is a transaction proposal read from a receipt. Amount is in rupees.
type Draft struct {
	Title         string    `json:"title"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Type          string    `json:"type,omitempty"`
	ReceiptURL    string    `json:"receiptUrl"`
}

// NewTransaction turns the draft into ledger input for userID.
func (d *Draft) NewTransaction(userID string) ledger.NewTransaction {
	txType := d.Type
	if txType == "" {
		txType = "EXPENSE"
	}
	return ledger.NewTransaction{
		UserID:        userID,
		Type:          txType,
		Title:         d.Title,
		Amount:        d.Amount,
		Category:      d.Category,
		Description:   d.Description,
		ReceiptURL:    d.ReceiptURL,
		Date:          d.Date,
		PaymentMethod: d.PaymentMethod,
	}
}

// modelReceipt is the raw model output. Amount accepts numbers and numeric
// strings.
type modelReceipt struct {
	Title         string      `json:"title"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Type          string      `json:"type"`
}

// Scanner reads receipts stored in GCS.
type Scanner struct {
	objects gcs.ObjectStore
	gen     ai.BlobGenerator
	log     zerolog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(objects gcs.ObjectStore, gen ai.BlobGenerator, log zerolog.Logger) *Scanner {
	return &Scanner{objects: objects, gen: gen, log: log}
}

// Scan downloads the receipt at uri and asks the model to read it.
func (s *Scanner) Scan(ctx context.Context, uri string) (*Draft, error) {
	data, err := s.objects.Download(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("Scan: %s is empty", uri)
	}

	mimeType := detectMIMEType(uri, data)
	s.log.Debug().Str("uri", uri).Str("mime_type", mimeType).Int("bytes", len(data)).Msg("Scanning receipt")

	raw, err := s.gen.GenerateWithBlob(ctx, receiptPrompt, mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("Scan: generate: %w", err)
	}

	draft, err := ParseDraft(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Str("raw", truncate(raw, 500)).Msg("Could not read receipt")
		return nil, fmt.Errorf("Scan: %w", err)
	}
	draft.ReceiptURL = uri
	return draft, nil
}

// ParseDraft decodes model output into a Draft.
func ParseDraft(raw string) (*Draft, error) {
	clean := insights.StripFences(raw)
	if clean == "" {
		return nil, fmt.Errorf("ParseDraft: empty model response")
	}

	var m modelReceipt
	if err := json.Unmarshal([]byte(clean), &m); err != nil {
		return nil, fmt.Errorf("ParseDraft: unmarshal JSON: %w", err)
	}

	if m.Amount == "" || strings.TrimSpace(m.Date) == "" {
		return nil, ErrIncompleteReceipt
	}
	amount, err := m.Amount.Float64()
	if err != nil || amount == 0 {
		return nil, ErrIncompleteReceipt
	}
	date, err := parseDate(m.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteReceipt, err)
	}

	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = defaultTitle
	}
	if amount < 0 {
		amount = -amount
	}
	return &Draft{
		Title:         title,
		Amount:        amount,
		Date:          date,
		Description:   strings.TrimSpace(m.Description),
		Category:      strings.ToLower(strings.TrimSpace(m.Category)),
		PaymentMethod: strings.ToUpper(strings.TrimSpace(m.PaymentMethod)),
		Type:          strings.ToUpper(strings.TrimSpace(m.Type)),
	}, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006", "2006/01/02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func detectMIMEType(uri string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(gcs.FileName(uri)))); t != "" {
		if i := strings.Index(t, ";"); i != -1 {
			t = t[:i]
		}
		return t
	}
	t := http.DetectContentType(data)
	if i := strings.Index(t, ";"); i != -1 {
		t = t[:i]
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
