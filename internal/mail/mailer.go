// Package mail はメール確認とパスワードリセットの通知メール送信を提供する。
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"
)

// Sender は通知メール送信のインターフェース。テストではモックに差し替える。
type Sender interface {
	// SendVerificationEmail はメールアドレス確認リンクを送信する。
	SendVerificationEmail(ctx context.Context, to, username, token string) error

	// SendPasswordResetEmail はパスワードリセットリンクを送信する。
	SendPasswordResetEmail(ctx context.Context, to, username, token string) error
}

var verificationTemplate = template.Must(template.New("verification").Parse(`<html>
<body>
<p>こんにちは、{{.Username}}さん</p>
<p>PhotoShareへようこそ。以下のリンクをクリックしてメールアドレスを確認してください。</p>
<p><a href="{{.Link}}">メールアドレスを確認する</a></p>
<p>このメールに心当たりがない場合は無視してください。</p>
</body>
</html>`))

var passwordResetTemplate = template.Must(template.New("password_reset").Parse(`<html>
<body>
<p>こんにちは、{{.Username}}さん</p>
<p>パスワードリセットのリクエストを受け付けました。以下のリンクから手続きを続けてください。</p>
<p><a href="{{.Link}}">パスワードをリセットする</a></p>
<p>このリクエストに心当たりがない場合は、このメールを無視してください。リンクの有効期限が切れるまでログインは保留されます。</p>
</body>
</html>`))

// SMTPConfig はSMTPサーバーへの接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string // 表示名。空の場合はFromのみ使用する
	BaseURL  string
}

// Mailer はgo-mailを使ったSenderの実装。
type Mailer struct {
	client   *mail.Client
	from     string
	fromName string
	baseURL  string
}

var _ Sender = (*Mailer)(nil)

// NewMailer はMailerを生成する。接続は送信時に確立される。
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail client: %w", err)
	}
	return &Mailer{client: client, from: cfg.From, fromName: cfg.FromName, baseURL: cfg.BaseURL}, nil
}

// SendVerificationEmail はメールアドレス確認リンクを送信する。
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, username, token string) error {
	link := m.baseURL + "/api/auth/confirm_email/" + token
	return m.send(ctx, to, "メールアドレスの確認", verificationTemplate, username, link)
}

// SendPasswordResetEmail はパスワードリセットリンクを送信する。
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, username, token string) error {
	link := m.baseURL + "/api/auth/reset_password/" + token
	return m.send(ctx, to, "パスワードリセットのご案内", passwordResetTemplate, username, link)
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, username, link string) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, struct {
		Username string
		Link     string
	}{Username: username, Link: link}); err != nil {
		return fmt.Errorf("failed to render mail body: %w", err)
	}

	msg := mail.NewMsg()
	if m.fromName != "" {
		if err := msg.FromFormat(m.fromName, m.from); err != nil {
			return fmt.Errorf("failed to set mail sender: %w", err)
		}
	} else if err := msg.From(m.from); err != nil {
		return fmt.Errorf("failed to set mail sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
