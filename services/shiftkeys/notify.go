package shiftkeys

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// ReportMailer emails a plain-text summary after a scheduled sweep so
// nobody has to tail logs to find out whether new keys landed.
type ReportMailer struct {
	Smtp SmtpConfig
}

func (m ReportMailer) SendSweepReport(ctx context.Context, result SweepResult) error {
	_, span := tracer.Start(ctx, "SendSweepReport")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("HobbyHub <%s>", m.Smtp.EmailAddress)
	mail.To = m.Smtp.To
	mail.Subject = fmt.Sprintf(
		"SHiFT sweep: %d keys, %d redeemed",
		result.Summary.TotalKeys, result.Summary.TotalSucceeded,
	)
	mail.Text = []byte(formatSweepReport(result))

	err := mail.Send(
		fmt.Sprintf("%s:%d", m.Smtp.Server, m.Smtp.Port),
		smtp.PlainAuth("", m.Smtp.EmailAddress, m.Smtp.Password, m.Smtp.Server),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send sweep report")
		return err
	}
	return nil
}

func formatSweepReport(result SweepResult) string {
	var out strings.Builder

	fmt.Fprintf(
		&out,
		"Sweep of %s through %s.\n\nKeys found: %d\nAttempts: %d\nSucceeded: %d\nFailed: %d\n",
		result.Since.Format(time.RFC1123),
		result.ScannedAt.Format(time.RFC1123),
		result.Summary.TotalKeys,
		result.Summary.TotalRedemptionAttempts,
		result.Summary.TotalSucceeded,
		result.Summary.TotalFailed,
	)

	for _, item := range result.Items {
		fmt.Fprintf(&out, "\n%s (via %s)\n", item.Code, strings.Join(item.Sources, ", "))
		for _, r := range item.Results {
			if r.Success {
				fmt.Fprintf(&out, "  %s [%s]: redeemed\n", r.Email, r.Service)
				continue
			}
			fmt.Fprintf(&out, "  %s [%s]: %s (%s)\n", r.Email, r.Service, r.Message, r.ErrorCode)
		}
	}

	return out.String()
}
