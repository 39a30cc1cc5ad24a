package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultSenderName is the display name on outgoing mail.
const DefaultSenderName = "Construction Site"

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string // defaults to Username
	To         string
	SenderName string
	MaxRetries uint64
	Timeout    time.Duration
}

type sendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends notifications through an SMTP relay, retrying transient
// failures with exponential backoff.
type SMTPNotifier struct {
	cfg     SMTPConfig
	auth    smtp.Auth
	send    sendFunc
	logger  *zap.Logger
	backoff func() backoff.BackOff
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithSMTPLogger sets the notifier logger.
func WithSMTPLogger(l *zap.Logger) SMTPOption {
	return func(n *SMTPNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithBackOff overrides the retry schedule (tests).
func WithBackOff(fn func() backoff.BackOff) SMTPOption {
	return func(n *SMTPNotifier) {
		if fn != nil {
			n.backoff = fn
		}
	}
}

func withSender(fn sendFunc) SMTPOption {
	return func(n *SMTPNotifier) { n.send = fn }
}

// NewSMTPNotifier validates cfg and returns a notifier.
func NewSMTPNotifier(cfg SMTPConfig, opts ...SMTPOption) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.To == "" {
		return nil, errors.New("smtp recipient required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	if _, err := mail.ParseAddress(cfg.To); err != nil {
		return nil, fmt.Errorf("smtp recipient: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.SenderName == "" {
		cfg.SenderName = DefaultSenderName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	n := &SMTPNotifier{
		cfg:    cfg,
		send:   dialAndSend(cfg.Timeout),
		logger: zap.NewNop(),
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	n.backoff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = 30 * time.Second
		return backoff.WithMaxRetries(b, n.cfg.MaxRetries)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send implements Notifier.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	payload := n.compose(msg)
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	attempt := 0
	op := func() error {
		attempt++
		err := n.send(ctx, addr, n.auth, n.cfg.From, []string{n.cfg.To}, payload)
		if err != nil {
			n.logger.Warn("smtp send failed", zap.Int("attempt", attempt), zap.Error(err))
			var perm *permanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(n.backoff(), ctx)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) compose(msg Message) []byte {
	from := mail.Address{Name: n.cfg.SenderName, Address: n.cfg.From}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", n.cfg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.Bytes()
}

// permanentError marks SMTP failures that retrying cannot fix (5xx replies).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return &permanentError{err: err}
	}
	return err
}

func sendWithClient(c *smtp.Client, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func dialAndSend(timeout time.Duration) sendFunc {
	return func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		dialer := &net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.SetDeadline(deadline)
		host, _, _ := net.SplitHostPort(addr)
		c, err := smtp.NewClient(conn, host)
		if err != nil {
			_ = conn.Close()
			return err
		}
		defer func() { _ = c.Close() }()
		if err := sendWithClient(c, host, auth, from, to, msg); err != nil {
			return classify(err)
		}
		return c.Quit()
	}
}
