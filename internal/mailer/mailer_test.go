package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/money"
)

type mockSender struct {
	SendFunc func(ctx context.Context, msg Message) (string, error)
}

func (m *mockSender) Send(ctx context.Context, msg Message) (string, error) {
	return m.SendFunc(ctx, msg)
}

func sampleReport() *domain.AggregatedReport {
	return &domain.AggregatedReport{
		Period: "January 1, 2025 - January 31, 2025",
		Summary: domain.ReportSummary{
			Income:      1000,
			Expenses:    500,
			Balance:     500,
			SavingsRate: 50,
			TopCategories: []domain.CategoryTotal{
				{Name: "Food & <Drinks>", Amount: 300, Percent: 60},
				{Name: "rent", Amount: 200, Percent: 40},
			},
		},
		Insights: []string{"Food is your largest expense.", "You saved half your income."},
	}
}

var asha = &domain.User{ID: "u1", Name: "Asha", Email: "asha@example.com"}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Monthly Financial Report - January 1, 2025 - January 31, 2025",
		Subject(domain.ReportFrequencyMonthly, "January 1, 2025 - January 31, 2025"))
}

func TestReportMailer_Render(t *testing.T) {
	m := NewReportMailer(nil, "", "", zerolog.Nop())
	msg, err := m.Render(asha, domain.ReportFrequencyMonthly, sampleReport())
	require.NoError(t, err)

	income := money.Format(1000, money.DefaultLocale, money.DefaultCurrency)

	assert.Equal(t, []string{"asha@example.com"}, msg.To)
	assert.Equal(t, "Monthly Financial Report - January 1, 2025 - January 31, 2025", msg.Subject)

	assert.Contains(t, msg.HTML, "Hi Asha")
	assert.Contains(t, msg.HTML, income)
	assert.Contains(t, msg.HTML, "Food &amp; &lt;Drinks&gt;")
	assert.NotContains(t, msg.HTML, "<Drinks>")
	assert.Contains(t, msg.HTML, "<li style=\"margin-bottom:8px;\">You saved half your income.</li>")

	assert.True(t, strings.HasPrefix(msg.Text, "Your Monthly Financial Report (January 1, 2025 - January 31, 2025)\n"))
	assert.Contains(t, msg.Text, "Income: "+income+"\n")
	assert.Contains(t, msg.Text, "Savings Rate: 50.00%")
	assert.True(t, strings.HasSuffix(msg.Text, "Food is your largest expense.\nYou saved half your income."))
}

func TestReportMailer_RenderWithoutCategoriesOrInsights(t *testing.T) {
	rep := sampleReport()
	rep.Summary.TopCategories = []domain.CategoryTotal{}
	rep.Insights = nil

	msg, err := NewReportMailer(nil, "", "", zerolog.Nop()).Render(&domain.User{Email: "x@example.com"}, domain.ReportFrequencyMonthly, rep)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "Top spending categories")
	assert.NotContains(t, msg.HTML, "<ul>")
	assert.Contains(t, msg.HTML, "Hi there")
}

func TestReportMailer_SendReport(t *testing.T) {
	var sent Message
	sender := &mockSender{SendFunc: func(_ context.Context, msg Message) (string, error) {
		sent = msg
		return "msg-1", nil
	}}

	err := NewReportMailer(sender, "", "", zerolog.Nop()).SendReport(context.Background(), asha, domain.ReportFrequencyMonthly, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{"asha@example.com"}, sent.To)
}

func TestReportMailer_SendReportErrors(t *testing.T) {
	sendErr := errors.New("provider down")
	sender := &mockSender{SendFunc: func(context.Context, Message) (string, error) { return "", sendErr }}
	m := NewReportMailer(sender, "", "", zerolog.Nop())

	err := m.SendReport(context.Background(), asha, domain.ReportFrequencyMonthly, sampleReport())
	assert.ErrorIs(t, err, sendErr)

	assert.Error(t, m.SendReport(context.Background(), &domain.User{ID: "u2"}, domain.ReportFrequencyMonthly, sampleReport()))
	assert.Error(t, m.SendReport(context.Background(), nil, domain.ReportFrequencyMonthly, sampleReport()))
	assert.Error(t, m.SendReport(context.Background(), asha, domain.ReportFrequencyMonthly, nil))
}

func TestNewResendSender_Validation(t *testing.T) {
	_, err := NewResendSender("", "reports@example.com")
	assert.Error(t, err)
	_, err = NewResendSender("re_key", "")
	assert.Error(t, err)

	s, err := NewResendSender("re_key", "reports@example.com")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), Message{Subject: "x"})
	assert.Error(t, err, "messages without recipients are rejected before any request")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	id, err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), `"subject":"Hello"`)

	_, err = s.Send(context.Background(), Message{To: []string{" "}, Subject: "Hello"})
	assert.Error(t, err)
}
