package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/money"
)

// ReportSender emails a generated report to its owner.
type ReportSender interface {
	SendReport(ctx context.Context, to *domain.User, freq domain.ReportFrequency, rep *domain.AggregatedReport) error
}

const reportHTML = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">
<table width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
<tr><td align="center">
<table width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
<tr><td>
<h2 style="margin:0 0 4px 0;color:#111827;">{{.Frequency}} Financial Report</h2>
<p style="margin:0 0 24px 0;color:#6b7280;">{{.Period}}</p>
<p style="color:#111827;">Hi {{.Username}}, here is your summary.</p>
<table width="100%" cellpadding="8" cellspacing="0" style="border-collapse:collapse;margin-bottom:24px;">
<tr><td>Income</td><td align="right">{{.Income}}</td></tr>
<tr><td>Expenses</td><td align="right">{{.Expenses}}</td></tr>
<tr><td>Balance</td><td align="right">{{.Balance}}</td></tr>
<tr><td>Savings rate</td><td align="right">{{.SavingsRate}}</td></tr>
</table>
{{- if .Categories}}
<h3 style="color:#111827;">Top spending categories</h3>
<table width="100%" cellpadding="6" cellspacing="0" style="border-collapse:collapse;margin-bottom:24px;">
{{- range .Categories}}
<tr><td>{{.Name}}</td><td align="right">{{.Amount}}</td><td align="right">{{.Percent}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .Insights}}
<h3 style="color:#111827;">Insights</h3>
<ul>
{{- range .Insights}}
<li style="margin-bottom:8px;">{{.}}</li>
{{- end}}
</ul>
{{- end}}
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

type categoryView struct {
	Name    string
	Amount  string
	Percent string
}

type reportView struct {
	Username    string
	Frequency   string
	Period      string
	Income      string
	Expenses    string
	Balance     string
	SavingsRate string
	Categories  []categoryView
	Insights    []string
}

// ReportMailer renders reports and hands them to a Sender.
type ReportMailer struct {
	sender   Sender
	locale   string
	currency string
	log      zerolog.Logger
}

// NewReportMailer creates a ReportMailer formatting amounts for locale and
// currency.
func NewReportMailer(sender Sender, locale, currency string, log zerolog.Logger) *ReportMailer {
	if locale == "" {
		locale = money.DefaultLocale
	}
	if currency == "" {
		currency = money.DefaultCurrency
	}
	return &ReportMailer{sender: sender, locale: locale, currency: currency, log: log}
}

// Subject is the email subject for a report.
func Subject(freq domain.ReportFrequency, period string) string {
	return fmt.Sprintf("%s Financial Report - %s", freq.Title(), period)
}

// SendReport implements ReportSender.
func (m *ReportMailer) SendReport(ctx context.Context, to *domain.User, freq domain.ReportFrequency, rep *domain.AggregatedReport) error {
	if to == nil || to.Email == "" {
		return errors.New("SendReport: recipient has no email address")
	}
	if rep == nil {
		return errors.New("SendReport: no report to send")
	}

	msg, err := m.Render(to, freq, rep)
	if err != nil {
		return fmt.Errorf("SendReport: %w", err)
	}

	id, err := m.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("SendReport: %w", err)
	}
	m.log.Info().Str("user_id", to.ID).Str("message_id", id).Str("period", rep.Period).Msg("Report email sent")
	return nil
}

// Render builds the report email without sending it.
func (m *ReportMailer) Render(to *domain.User, freq domain.ReportFrequency, rep *domain.AggregatedReport) (Message, error) {
	view := m.view(to, freq, rep)

	var html bytes.Buffer
	if err := reportTemplate.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("Render: executing template: %w", err)
	}

	return Message{
		To:      []string{to.Email},
		Subject: Subject(freq, rep.Period),
		HTML:    html.String(),
		Text:    m.text(view),
	}, nil
}

func (m *ReportMailer) view(to *domain.User, freq domain.ReportFrequency, rep *domain.AggregatedReport) reportView {
	s := rep.Summary
	v := reportView{
		Username:    to.Name,
		Frequency:   freq.Title(),
		Period:      rep.Period,
		Income:      m.format(s.Income),
		Expenses:    m.format(s.Expenses),
		Balance:     m.format(s.Balance),
		SavingsRate: fmt.Sprintf("%.2f%%", s.SavingsRate),
		Insights:    rep.Insights,
	}
	if v.Username == "" {
		v.Username = "there"
	}
	for _, c := range s.TopCategories {
		v.Categories = append(v.Categories, categoryView{
			Name:    c.Name,
			Amount:  m.format(c.Amount),
			Percent: fmt.Sprintf("%.0f%%", c.Percent),
		})
	}
	return v
}

func (m *ReportMailer) text(v reportView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your %s Financial Report (%s)\n", v.Frequency, v.Period)
	fmt.Fprintf(&b, "Income: %s\n", v.Income)
	fmt.Fprintf(&b, "Expenses: %s\n", v.Expenses)
	fmt.Fprintf(&b, "Balance: %s\n", v.Balance)
	fmt.Fprintf(&b, "Savings Rate: %s\n", v.SavingsRate)
	if len(v.Insights) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(v.Insights, "\n"))
	}
	return b.String()
}

func (m *ReportMailer) format(v float64) string {
	return money.Format(v, m.locale, m.currency)
}
