package pipeline

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSMTPTimeout    = 20 * time.Second
	defaultWebhookTimeout = 10 * time.Second
	defaultChatUsername   = "Lance Bot"
	// 寫入日誌的內容上限
	previewLength = 400
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// configured 缺少帳號密碼時只記錄不寄送
func (c SMTPConfig) configured() bool {
	return c.User != "" && c.Password != ""
}

type notifierOptions struct {
	logger       *slog.Logger
	smtp         SMTPConfig
	webhookURL   string
	chatUsername string
	httpClient   *http.Client
	sendMail     func(ctx context.Context, config SMTPConfig, to string, msg []byte) error
}

type NotifierOption func(*notifierOptions)

func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(o *notifierOptions) {
		o.logger = logger
	}
}

func WithSMTP(config SMTPConfig) NotifierOption {
	return func(o *notifierOptions) {
		o.smtp = config
	}
}

func WithDiscordWebhook(url string) NotifierOption {
	return func(o *notifierOptions) {
		o.webhookURL = strings.TrimSpace(url)
	}
}

func WithHTTPClient(client *http.Client) NotifierOption {
	return func(o *notifierOptions) {
		o.httpClient = client
	}
}

// WithMailSender 替換實際寄信的方式
func WithMailSender(fn func(ctx context.Context, config SMTPConfig, to string, msg []byte) error) NotifierOption {
	return func(o *notifierOptions) {
		o.sendMail = fn
	}
}

// NotificationService 透過 SMTP 寄信，透過 Discord webhook 發文
type NotificationService struct {
	logger       *slog.Logger
	smtp         SMTPConfig
	webhookURL   string
	chatUsername string
	httpClient   *http.Client
	sendMail     func(ctx context.Context, config SMTPConfig, to string, msg []byte) error
}

func NewNotificationService(opts ...NotifierOption) *NotificationService {
	options := notifierOptions{
		logger:       slog.Default(),
		chatUsername: defaultChatUsername,
		httpClient:   &http.Client{Timeout: defaultWebhookTimeout},
		sendMail:     sendSMTP,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.smtp.Port == 0 {
		options.smtp.Port = 587
	}
	if options.smtp.From == "" {
		options.smtp.From = options.smtp.User
	}
	if options.smtp.From == "" {
		options.smtp.From = "noreply@lance.local"
	}

	n := &NotificationService{
		logger:       options.logger.With(slog.String("caller", "NotificationService")),
		smtp:         options.smtp,
		webhookURL:   options.webhookURL,
		chatUsername: options.chatUsername,
		httpClient:   options.httpClient,
		sendMail:     options.sendMail,
	}
	n.logger.Info("notification config",
		slog.String("smtp", net.JoinHostPort(n.smtp.Host, strconv.Itoa(n.smtp.Port))),
		slog.Bool("smtpConfigured", n.smtp.configured()),
		slog.Bool("webhookConfigured", n.webhookURL != ""),
	)
	return n
}

// SendEmail 未設定 SMTP 帳號時只記錄內容並視為成功
func (n *NotificationService) SendEmail(ctx context.Context, email Email) bool {
	logger := n.logger.With(slog.String("to", email.To))
	if !n.smtp.configured() {
		logger.Warn("smtp credentials missing, simulating e-mail",
			slog.String("subject", email.Subject),
			slog.String("body", preview(email.Body)),
		)
		return true
	}

	msg := buildMessage(n.smtp.From, email)
	if err := n.sendMail(ctx, n.smtp, email.To, msg); err != nil {
		logger.Error("failed to send e-mail",
			slog.String("subject", email.Subject),
			slog.String("body", preview(email.Body)),
			slog.Any("error", err),
		)
		return false
	}
	logger.Info("e-mail sent")
	return true
}

// SendChat 未設定 webhook 時只記錄內容並視為成功
func (n *NotificationService) SendChat(ctx context.Context, content string) bool {
	if n.webhookURL == "" {
		n.logger.Warn("discord webhook missing, simulating post", slog.String("content", preview(content)))
		return true
	}

	payload, err := json.Marshal(map[string]string{
		"content":  content,
		"username": n.chatUsername,
	})
	if err != nil {
		n.logger.Error("failed to encode chat payload", slog.Any("error", err))
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("failed to build webhook request", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("failed to post to discord", slog.String("content", preview(content)), slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, previewLength))
		n.logger.Error("discord rejected post",
			slog.Int("status", resp.StatusCode),
			slog.String("response", string(body)),
		)
		return false
	}
	n.logger.Info("posted to discord")
	return true
}

// buildMessage 組出純文字與 HTML 兩種版本的信件
func buildMessage(from string, email Email) []byte {
	const boundary = "lance-alternative-boundary"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.Body)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b,
		`<html><body><div style="font-family: Arial, sans-serif; line-height:1.4; color:#111;">%s</div></body></html>`,
		strings.ReplaceAll(html.EscapeString(email.Body), "\n", "<br>"),
	)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// sendSMTP 465 使用隱式 TLS，其他埠使用 STARTTLS
func sendSMTP(ctx context.Context, config SMTPConfig, to string, msg []byte) error {
	const op = "sendSMTP"
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	dialer := &net.Dialer{Timeout: defaultSMTPTimeout}

	var conn net.Conn
	var err error
	if config.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: config.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("[%s] Fail to dial %s, err=%w", op, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(defaultSMTPTimeout))
	}

	client, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("[%s] Fail to create smtp client, err=%w", op, err)
	}
	defer client.Close()

	if config.Port != 465 {
		if err := client.StartTLS(&tls.Config{ServerName: config.Host}); err != nil {
			return fmt.Errorf("[%s] Fail to start tls, err=%w", op, err)
		}
	}
	if err := client.Auth(smtp.PlainAuth("", config.User, config.Password, config.Host)); err != nil {
		return fmt.Errorf("[%s] Fail to authenticate, err=%w", op, err)
	}
	if err := client.Mail(config.From); err != nil {
		return fmt.Errorf("[%s] MAIL FROM failed, err=%w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("[%s] RCPT TO failed, err=%w", op, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("[%s] DATA failed, err=%w", op, err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("[%s] Fail to write message, err=%w", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("[%s] Fail to finish message, err=%w", op, err)
	}
	return client.Quit()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
