package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
)

// implicitTLSPort is the SMTPS port; other ports use STARTTLS when offered
const implicitTLSPort = 465

// sendFunc delivers a composed message; replaced in tests
type sendFunc func(ctx context.Context, config common.EmailConfig, msg []byte) error

// EmailChannel sends a multipart text/HTML alert over SMTP
type EmailChannel struct {
	config common.EmailConfig
	send   sendFunc
	now    func() time.Time
}

// NewEmailChannel creates an email channel
func NewEmailChannel(config common.EmailConfig) *EmailChannel {
	return &EmailChannel{config: config, send: sendSMTP, now: time.Now}
}

func (c *EmailChannel) Name() string {
	return models.ChannelEmail
}

// compose builds the RFC 5322 message with plain text and HTML alternatives
func (c *EmailChannel) compose(alert Alert) ([]byte, error) {
	htmlBody, err := alert.HTML()
	if err != nil {
		return nil, err
	}

	to := make([]*mail.Address, len(c.config.To))
	for i, addr := range c.config.To {
		to[i] = &mail.Address{Address: addr}
	}

	var h mail.Header
	h.SetDate(c.now())
	h.SetAddressList("From", []*mail.Address{{Name: "PriceWatch", Address: c.config.From}})
	h.SetAddressList("To", to)
	h.SetSubject(alert.Subject())

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create message body: %w", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", alert.Markdown()},
		{"text/html", htmlBody},
	}
	for _, part := range parts {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		ph.Set("Content-Transfer-Encoding", "quoted-printable")

		pw, err := iw.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s part: %w", part.contentType, err)
		}
		if _, err := io.WriteString(pw, part.body); err != nil {
			return nil, fmt.Errorf("failed to write %s part: %w", part.contentType, err)
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}

	if err := iw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *EmailChannel) Send(ctx context.Context, alert Alert) error {
	if c.config.SMTPHost == "" || c.config.From == "" || len(c.config.To) == 0 {
		return fmt.Errorf("email channel not configured")
	}

	msg, err := c.compose(alert)
	if err != nil {
		return err
	}
	return c.send(ctx, c.config, msg)
}

// sendSMTP delivers msg using implicit TLS on port 465, otherwise plain SMTP
// upgraded with STARTTLS when the server offers it
func sendSMTP(ctx context.Context, config common.EmailConfig, msg []byte) error {
	addr := net.JoinHostPort(config.SMTPHost, strconv.Itoa(config.SMTPPort))
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var conn net.Conn
	var err error
	if config.SMTPPort == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: config.SMTPHost}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, config.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if config.SMTPPort != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: config.SMTPHost}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if config.Username != "" {
		auth := smtp.PlainAuth("", config.Username, config.Password, config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, to := range config.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set mail recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
