package receipts

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObjectStore struct {
	DownloadFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockObjectStore) Download(ctx context.Context, uri string) ([]byte, error) {
	return m.DownloadFunc(ctx, uri)
}

func (m *mockObjectStore) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("not implemented")
}

type mockBlobGenerator struct {
	GenerateWithBlobFunc func(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

func (m *mockBlobGenerator) GenerateWithBlob(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return m.GenerateWithBlobFunc(ctx, prompt, mimeType, data)
}

func TestScan(t *testing.T) {
	var gotMIME string
	var gotData []byte
	objects := &mockObjectStore{DownloadFunc: func(_ context.Context, uri string) ([]byte, error) {
		assert.Equal(t, "gs://receipts/u1/cafe.jpg", uri)
		return []byte("jpeg-bytes"), nil
	}}
	gen := &mockBlobGenerator{GenerateWithBlobFunc: func(_ context.Context, prompt, mimeType string, data []byte) (string, error) {
		gotMIME, gotData = mimeType, data
		assert.Contains(t, prompt, "receipt")
		return "```json\n{\"title\":\"Blue Tokai\",\"amount\":345.5,\"date\":\"2025-01-14\",\"category\":\"Dining\",\"paymentMethod\":\"upi\",\"type\":\"expense\"}\n```", nil
	}}

	draft, err := NewScanner(objects, gen, zerolog.Nop()).Scan(context.Background(), "gs://receipts/u1/cafe.jpg")
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotMIME)
	assert.Equal(t, []byte("jpeg-bytes"), gotData)
	assert.Equal(t, "Blue Tokai", draft.Title)
	assert.Equal(t, 345.5, draft.Amount)
	assert.Equal(t, time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC), draft.Date)
	assert.Equal(t, "dining", draft.Category)
	assert.Equal(t, "UPI", draft.PaymentMethod)
	assert.Equal(t, "EXPENSE", draft.Type)
	assert.Equal(t, "gs://receipts/u1/cafe.jpg", draft.ReceiptURL)

	in := draft.NewTransaction("u1")
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, 345.5, in.Amount)
	assert.Equal(t, "gs://receipts/u1/cafe.jpg", in.ReceiptURL)
}

func TestScan_Errors(t *testing.T) {
	ok := &mockObjectStore{DownloadFunc: func(context.Context, string) ([]byte, error) { return []byte("%PDF-1.4"), nil }}

	t.Run("download fails", func(t *testing.T) {
		objects := &mockObjectStore{DownloadFunc: func(context.Context, string) ([]byte, error) {
			return nil, errors.New("403 forbidden")
		}}
		_, err := NewScanner(objects, nil, zerolog.Nop()).Scan(context.Background(), "gs://b/r.pdf")
		assert.ErrorContains(t, err, "403 forbidden")
	})

	t.Run("model fails", func(t *testing.T) {
		gen := &mockBlobGenerator{GenerateWithBlobFunc: func(context.Context, string, string, []byte) (string, error) {
			return "", errors.New("all models exhausted")
		}}
		_, err := NewScanner(ok, gen, zerolog.Nop()).Scan(context.Background(), "gs://b/r.pdf")
		assert.ErrorContains(t, err, "all models exhausted")
	})

	t.Run("unreadable receipt", func(t *testing.T) {
		gen := &mockBlobGenerator{GenerateWithBlobFunc: func(_ context.Context, _ string, mimeType string, _ []byte) (string, error) {
			assert.Equal(t, "application/pdf", mimeType)
			return "{}", nil
		}}
		_, err := NewScanner(ok, gen, zerolog.Nop()).Scan(context.Background(), "gs://b/r.pdf")
		assert.ErrorIs(t, err, ErrIncompleteReceipt)
	})
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantTitle  string
		wantAmount float64
		wantErr    error
		wantAnyErr bool
	}{
		{name: "numeric string amount", raw: `{"title":"Bill","amount":"120.00","date":"2025-01-02"}`, wantTitle: "Bill", wantAmount: 120},
		{name: "default title", raw: `{"amount":99,"date":"2025-01-02T10:00:00Z"}`, wantTitle: "Receipt", wantAmount: 99},
		{name: "negative amount made positive", raw: `{"amount":-40,"date":"02/01/2025"}`, wantTitle: "Receipt", wantAmount: 40},
		{name: "missing amount", raw: `{"title":"x","date":"2025-01-02"}`, wantErr: ErrIncompleteReceipt},
		{name: "zero amount", raw: `{"amount":0,"date":"2025-01-02"}`, wantErr: ErrIncompleteReceipt},
		{name: "missing date", raw: `{"amount":10}`, wantErr: ErrIncompleteReceipt},
		{name: "bad date", raw: `{"amount":10,"date":"last tuesday"}`, wantErr: ErrIncompleteReceipt},
		{name: "not json", raw: "I could not read this receipt.", wantAnyErr: true},
		{name: "empty", raw: "  ", wantAnyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDraft(tt.raw)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantTitle, d.Title)
				assert.Equal(t, tt.wantAmount, d.Amount)
			}
		})
	}
}
