// Package notify delivers generated documents to customers by email.
package notify

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/heartmarshall/brandkit/internal/domain"
)

//go:embed templates/delivery.html
var templateFS embed.FS

var deliveryTmpl = template.Must(template.ParseFS(templateFS, "templates/delivery.html"))

const (
	DefaultAttempts  = 3
	DefaultRetryBase = 2 * time.Second
	DefaultMailer    = "brandkit invoice service"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

//go:generate moq -out sender_mock_test.go -pkg notify . sender

// sender hands a composed message to the mail transport.
type sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Message is one delivery to one recipient.
type Message struct {
	Recipient       string
	Subject         string
	BodyText        string
	AttachmentPaths []string

	BusinessName string
	BrandID      string
	TaxPercent   string
	Currency     string
	Variant      domain.Variant
}

// Config holds the static parts of every outgoing message.
type Config struct {
	From       string
	SenderName string
	CTAURL     string
	Mailer     string
	Attempts   int
	RetryBase  time.Duration
}

// Notifier composes delivery emails and sends them with bounded retries.
type Notifier struct {
	sender sender
	cfg    Config
	log    *slog.Logger

	now   func() time.Time
	timer backoff.Timer
}

// NewNotifier creates a Notifier. Zero Attempts and RetryBase fall back to
// DefaultAttempts and DefaultRetryBase.
func NewNotifier(log *slog.Logger, s sender, cfg Config) *Notifier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.Mailer == "" {
		cfg.Mailer = DefaultMailer
	}
	return &Notifier{
		sender: s,
		cfg:    cfg,
		log:    log.With("service", "notify"),
		now:    time.Now,
	}
}

// MaxSendDuration is the longest Send can take with c when each attempt is
// bounded by attemptTimeout. attemptTimeout <= 0 uses mail.DefaultTimeout.
func (c Config) MaxSendDuration(attemptTimeout time.Duration) time.Duration {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if attemptTimeout <= 0 {
		attemptTimeout = mail.DefaultTimeout
	}

	total := time.Duration(c.Attempts) * attemptTimeout
	wait := c.RetryBase
	for i := 1; i < c.Attempts; i++ {
		total += wait
		wait *= 2
	}
	return total
}

// Send delivers msg. Failed attempts are retried with exponential backoff
// (RetryBase, then doubling). After the last attempt fails the error wraps
// domain.ErrDelivery.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Recipient) == "" {
		return fmt.Errorf("notify: %w: empty recipient", domain.ErrDelivery)
	}

	m, err := n.compose(msg)
	if err != nil {
		return fmt.Errorf("notify: compose: %w: %w", domain.ErrDelivery, err)
	}

	attempt := 0
	op := func() error {
		attempt++
		return n.sender.Send(ctx, m)
	}
	onRetry := func(err error, wait time.Duration) {
		n.log.WarnContext(ctx, "email attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotifyWithTimer(op, n.policy(ctx), onRetry, n.timer); err != nil {
		n.log.ErrorContext(ctx, "email delivery failed",
			slog.Int("attempts", attempt),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("notify: send to %s after %d attempts: %w: %w", msg.Recipient, attempt, domain.ErrDelivery, err)
	}

	n.log.InfoContext(ctx, "email sent",
		slog.String("recipient", msg.Recipient),
		slog.String("brand_id", msg.BrandID),
		slog.Int("attempts", attempt),
	)
	return nil
}

func (n *Notifier) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.cfg.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(n.cfg.Attempts-1)), ctx)
}

type htmlData struct {
	Subject      string
	BusinessName string
	BrandID      string
	TaxPercent   string
	Currency     string
	CTAURL       string
	Licensed     bool
}

func (n *Notifier) compose(msg Message) (*mail.Msg, error) {
	subject := msg.Subject
	if msg.BusinessName != "" {
		subject = msg.BusinessName + " - " + subject
	}

	m := mail.NewMsg()
	if err := m.FromFormat(n.cfg.SenderName, n.cfg.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(subject)
	m.SetMessageIDWithValue(uuid.NewString() + "@" + domainOf(n.cfg.From))
	m.SetDateWithValue(n.now())
	m.SetGenHeader(mail.HeaderXMailer, n.cfg.Mailer)
	m.SetGenHeader(mail.Header("List-Unsubscribe"), fmt.Sprintf("<mailto:%s?subject=Unsubscribe>", n.cfg.From))

	m.SetBodyString(mail.TypeTextPlain, n.plainBody(msg))

	data := htmlData{
		Subject:      subject,
		BusinessName: msg.BusinessName,
		BrandID:      msg.BrandID,
		TaxPercent:   msg.TaxPercent,
		Currency:     msg.Currency,
		CTAURL:       n.cfg.CTAURL,
		Licensed:     msg.Variant == domain.VariantLicensed,
	}
	if err := m.AddAlternativeHTMLTemplate(deliveryTmpl, data); err != nil {
		return nil, fmt.Errorf("html body: %w", err)
	}

	for _, p := range msg.AttachmentPaths {
		ct := mail.TypeAppOctetStream
		if strings.EqualFold(filepath.Ext(p), ".xlsx") {
			ct = mail.ContentType(xlsxContentType)
		}
		m.AttachFile(p, mail.WithFileContentType(ct))
	}
	return m, nil
}

func (n *Notifier) plainBody(msg Message) string {
	if msg.BodyText != "" {
		return msg.BodyText
	}
	var b strings.Builder
	if msg.Variant == domain.VariantLicensed {
		b.WriteString("Please find attached your licensed invoice template.")
	} else {
		b.WriteString("Please find attached a watermarked preview of your custom invoice template.")
	}
	fmt.Fprintf(&b, " Your Brand ID is: %s. Please save this ID for future template purchases.", msg.BrandID)
	if msg.Variant != domain.VariantLicensed && n.cfg.CTAURL != "" {
		fmt.Fprintf(&b, "\n\nGet the licensed version: %s", n.cfg.CTAURL)
	}
	return b.String()
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
