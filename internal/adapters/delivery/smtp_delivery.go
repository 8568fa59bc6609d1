package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

const smtpTimeout = 30 * time.Second

// SMTPDelivery mails briefs through an SMTP submission server
type SMTPDelivery struct {
	cfg           config.SMTPConfig
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSMTPDelivery creates a new SMTP delivery
func NewSMTPDelivery(cfg config.SMTPConfig, logger *zap.Logger, textProcessor *utils.TextProcessor) (*SMTPDelivery, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: smtp host and from address are required", core.ErrNotConfigured)
	}
	return &SMTPDelivery{cfg: cfg, logger: logger, textProcessor: textProcessor}, nil
}

// Method implements core.BriefDelivery
func (d *SMTPDelivery) Method() string {
	return "smtp"
}

// Deliver builds a multipart/alternative message and submits it to the recipient
func (d *SMTPDelivery) Deliver(ctx context.Context, brief *core.Brief, recipient string) error {
	data, err := d.buildMessage(brief, recipient)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(smtpTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if d.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: d.cfg.Host}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		} else {
			d.logger.Warn("SMTP server does not offer STARTTLS", zap.String("host", d.cfg.Host))
		}
	}

	if d.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", d.cfg.Username, d.cfg.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(d.cfg.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send brief data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message was accepted already
		d.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// buildMessage renders the brief as a MIME message with text and HTML parts
func (d *SMTPDelivery) buildMessage(brief *core.Brief, recipient string) ([]byte, error) {
	htmlBody, err := RenderHTML(brief)
	if err != nil {
		return nil, err
	}

	part, err := enmime.Builder().
		From("Daily Brief", d.cfg.From).
		To("", recipient).
		Subject(Subject(brief)).
		Date(brief.GeneratedAt).
		Header("X-Brief-Id", brief.ID).
		Text([]byte(d.textProcessor.HTMLToText(brief.Text))).
		HTML(htmlBody).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build brief message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode brief message: %w", err)
	}
	return buf.Bytes(), nil
}
