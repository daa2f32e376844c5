package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"spinwheel/internal/config"
)

// ErrNotConfigured is returned when SMTP credentials are missing.
var ErrNotConfigured = errors.New("mail transport not configured")

// Notification carries what the winner sees. Email is the address exactly as
// submitted, not the normalized key.
type Notification struct {
	Name       string
	Email      string
	Domain     string
	Discount   int
	CouponCode string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SMTPMailer delivers coupon emails with a single attempt per message.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	fromName string
	timeout  time.Duration
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		fromName: cfg.SMTPFromName,
		timeout:  cfg.SMTPTimeout,
	}
}

func (m *SMTPMailer) Configured() bool {
	return m.host != "" && m.user != "" && m.password != ""
}

func (m *SMTPMailer) Notify(ctx context.Context, n Notification) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(n.Email) == "" {
		return errors.New("no recipient")
	}

	msg, err := m.compose(n)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	// The deadline bounds the greeting and the rest of the conversation so a
	// stalled server cannot pin a worker.
	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.user, m.password, m.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(m.user); err != nil {
		return fmt.Errorf("smtp MAIL: %w", err)
	}
	if err := c.Rcpt(n.Email); err != nil {
		return fmt.Errorf("smtp RCPT: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}
	return c.Quit()
}

const subject = "🎉 Your ZooTechX Discount Coupon!"

var couponTemplate = template.Must(template.New("coupon").Parse(`<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; max-width: 600px; margin: 0 auto; background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%); padding: 40px; border-radius: 16px;">
  <h1 style="color: #00f2ff; text-align: center; font-size: 28px;">🎊 Congratulations, {{.Name}}!</h1>
  <p style="color: #ffffff; text-align: center; font-size: 18px;">You just won a special discount from {{.From}}!</p>
  <div style="background: #2a2a40; padding: 30px; border-radius: 12px; text-align: center; border: 2px solid #00f2ff;">
    <p style="color: #bd00ff; font-size: 24px; font-weight: bold; margin: 0 0 10px 0;">{{.Discount}}% OFF</p>
    <p style="color: #ffffff; font-size: 16px; margin: 0 0 20px 0;">on {{.Domain}}</p>
    <span style="color: #00f2ff; font-size: 28px; font-weight: bold; letter-spacing: 3px;">{{.CouponCode}}</span>
  </div>
  <p style="color: #aaaaaa; text-align: center; font-size: 14px;">Show this email at the {{.From}} desk to redeem your discount.</p>
  <p style="color: #666666; text-align: center; font-size: 12px;">Best regards,<br><strong style="color: #00f2ff;">{{.From}} Team</strong></p>
</div>
`))

func (m *SMTPMailer) compose(n Notification) ([]byte, error) {
	var body bytes.Buffer
	err := couponTemplate.Execute(&body, struct {
		Notification
		From string
	}{n, m.fromName})
	if err != nil {
		return nil, fmt.Errorf("render coupon email: %w", err)
	}

	from := mail.Address{Name: m.fromName, Address: m.user}
	to := mail.Address{Name: n.Name, Address: n.Email}

	var msg bytes.Buffer
	for _, h := range []string{
		"From: " + from.String(),
		"To: " + to.String(),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
	} {
		msg.WriteString(h + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
