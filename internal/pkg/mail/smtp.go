package mail

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSMTPHostPortRequired is returned when Host/Port are missing.
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	// ErrSMTPNoRecipients is returned when To/Cc/Bcc are all empty.
	ErrSMTPNoRecipients = errors.New("no recipients provided")
	// ErrSMTPNoSender is returned when both Message.From and the configured default From are empty.
	ErrSMTPNoSender = errors.New("no sender provided")
)

// SMTP is a Mail implementation backed by net/smtp.
type SMTP struct {
	addr        string
	host        string
	defaultFrom string
	auth        smtp.Auth
	dialer      net.Dialer
	tlsConfig   *tls.Config
}

// SMTPConfig configures the SMTP implementation.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the default sender when Message.From is empty.
	From string
	// InsecureSkipVerify disables certificate checks after STARTTLS. Local relays only.
	InsecureSkipVerify bool
}

// NewSMTP constructs an SMTP mail sender.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTP{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:        cfg.Host,
		defaultFrom: cfg.From,
		auth:        auth,
		tlsConfig: &tls.Config{
			ServerName:         cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local relays
		},
	}, nil
}

// Send delivers a message over SMTP. The connection is closed as soon as ctx
// is done, so a stalled server cannot hold the caller past its deadline.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	recipients := msg.recipients()
	if len(recipients) == 0 {
		return ErrSMTPNoRecipients
	}

	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return ErrSMTPNoSender
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := s.deliver(conn, from, recipients, buildRaw(from, msg)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return err
	}

	return nil
}

func (s *SMTP) deliver(conn net.Conn, from string, recipients []string, raw []byte) error {
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(s.tlsConfig); err != nil {
			return err
		}
	}

	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

// Close implements io.Closer; SMTP keeps no pooled connections.
func (s *SMTP) Close() error {
	return nil
}

func buildRaw(from string, msg Message) []byte {
	body, contentType := buildBody(msg)

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
	}
	if len(msg.Cc) > 0 {
		headers = append(headers, "Cc: "+strings.Join(msg.Cc, ", "))
	}
	headers = append(headers,
		"Subject: "+mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: "+time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: "+contentType,
	)

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

func buildBody(msg Message) (body string, contentType string) {
	if msg.HTMLBody != "" && msg.TextBody != "" {
		boundary := multipartBoundary()
		var sb strings.Builder
		sb.WriteString("This is a multipart message in MIME format.\r\n")
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		sb.WriteString(msg.TextBody)
		fmt.Fprintf(&sb, "\r\n--%s\r\n", boundary)
		sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		sb.WriteString(msg.HTMLBody)
		fmt.Fprintf(&sb, "\r\n--%s--", boundary)
		return sb.String(), "multipart/alternative; boundary=" + boundary
	}

	if msg.HTMLBody != "" {
		return msg.HTMLBody, "text/html; charset=UTF-8"
	}

	return msg.TextBody, "text/plain; charset=UTF-8"
}

func multipartBoundary() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "otpgate-boundary-fallback"
	}
	return "otpgate-boundary-" + hex.EncodeToString(b[:])
}
