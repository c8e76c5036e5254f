// Package mail delivers confirmation codes. The SMTP backend runs behind a
// circuit breaker so a dead mail server fails signups fast instead of
// holding every request for the dial timeout.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/sony/gobreaker/v2"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/metrics"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message or returns an error wrapping apperrors.ErrMailDelivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New 按配置选择后端
func New(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Backend {
	case "", "log":
		return NewLogMailer(cfg.From), nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported mail backend %q", cfg.Backend)
	}
}

// LogMailer 只把邮件写进日志，开发环境使用
type LogMailer struct {
	from string
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	hlog.CtxInfof(ctx, "[MAIL] from=%s to=%s subject=%q body=%q", m.from, msg.To, msg.Subject, msg.Body)
	metrics.RecordMail("log", nil)
	return nil
}

// SMTPMailer 通过 SMTP 投递
type SMTPMailer struct {
	cfg     config.MailConfig
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			hlog.Warnf("[MAIL] circuit %s: %s -> %s", name, from, to)
		},
	}
	return &SMTPMailer{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.send(ctx, msg)
	})
	metrics.RecordMail("smtp", err)
	if err != nil {
		hlog.CtxErrorf(ctx, "[MAIL] delivery to %s failed: %v", msg.To, err)
		return fmt.Errorf("%w: %v", apperrors.ErrMailDelivery, err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if m.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}
	if _, err := writer.Write([]byte(buildMessage(m.cfg.From, msg))); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	// 消息已经提交，QUIT 失败不算投递失败
	_ = client.Quit()
	return nil
}

func buildMessage(from string, msg Message) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.String()
}

// Recorder 记录所有消息，测试用。Fail 非空时 Send 返回该错误。
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Fail error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMailDelivery, r.Fail)
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent 返回已发送消息的副本
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last 返回最后一封邮件
func (r *Recorder) Last() (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, errors.New("no mail sent")
	}
	return r.sent[len(r.sent)-1], nil
}
