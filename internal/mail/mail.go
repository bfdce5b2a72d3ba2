package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"trackbook/internal/config"
	"trackbook/internal/models"

	"github.com/domodwyer/mailyak/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var confirmationTmpl = template.Must(template.New("payment_confirmation").Parse(`
<html>
<body>
  <h2>Payment confirmed</h2>
  <p>Your payment of <strong>{{printf "%.2f" .Amount}} {{.Currency}}</strong> has been received.</p>
  {{if .IsPromotion}}
  <p>Your track promotion is now live for 30 days.</p>
  {{else}}
  <p>Your bookings are confirmed. See you there!</p>
  {{end}}
  <p>Reference: {{.CheckoutSessionID}}</p>
</body>
</html>
`))

// Sender delivers transactional email over SMTP. Outbound volume is rate
// limited so a reconciliation burst cannot trip the provider.
type Sender struct {
	host    string
	port    int
	auth    smtp.Auth
	from    string
	adminTo string
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewSender(cfg config.SMTPConfig, logger *zerolog.Logger) *Sender {
	if !cfg.Enabled {
		return nil
	}
	return &Sender{
		host:    cfg.Host,
		port:    cfg.Port,
		auth:    smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		from:    cfg.From,
		adminTo: cfg.AdminTo,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		logger:  logger,
	}
}

// SendPaymentConfirmation mails a receipt for a reconciled payment. The
// platform stores no email addresses for recipients yet, so the copy goes
// to the admin address for manual forwarding.
func (s *Sender) SendPaymentConfirmation(ctx context.Context, payment *models.Payment) error {
	if s == nil {
		return nil
	}

	var body bytes.Buffer
	data := struct {
		Amount            float64
		Currency          string
		IsPromotion       bool
		CheckoutSessionID string
	}{
		Amount:            payment.Amount,
		Currency:          strings.ToUpper(payment.Currency),
		IsPromotion:       payment.IsPromotion,
		CheckoutSessionID: payment.CheckoutSessionID,
	}
	if err := confirmationTmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	return s.send(ctx, s.adminTo, "Payment confirmed", body.String())
}

func (s *Sender) send(ctx context.Context, to, subject, htmlBody string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg := mailyak.New(fmt.Sprintf("%s:%d", s.host, s.port), s.auth)
	msg.From(s.from)
	msg.To(to)
	msg.Subject(subject)
	msg.HTML().Set(htmlBody)

	if err := msg.Send(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
