// Package mail delivers transactional email. The only message the platform
// sends today is the invite email carrying a password-set link and the
// human-readable invite code.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Invite is the content of one invite email.
type Invite struct {
	To        string
	Name      string
	Role      string
	Link      string
	Code      string
	ExpiresIn time.Duration
}

// Mailer sends invite email.
type Mailer interface {
	SendInvite(ctx context.Context, inv Invite) error
}

const inviteSubject = "You have been invited to the Bridgepoint portal"

var inviteText = texttemplate.Must(texttemplate.New("invite").Parse(`Hello{{if .Name}} {{.Name}}{{end}},

You have been invited to the Bridgepoint portal as a {{.Role}}.

Set your password here (the link expires in {{.Expiry}}):
{{.Link}}

If the link has expired, sign up with your invite code instead: {{.Code}}

If you were not expecting this invitation you can ignore this email.
`))

var inviteHTML = htmltemplate.Must(htmltemplate.New("invite").Parse(`<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>You have been invited to the Bridgepoint portal as a <strong>{{.Role}}</strong>.</p>
<p><a href="{{.Link}}">Set your password</a> (the link expires in {{.Expiry}}).</p>
<p>If the link has expired, sign up with your invite code instead: <code>{{.Code}}</code></p>
<p>If you were not expecting this invitation you can ignore this email.</p>
`))

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) SendInvite(ctx context.Context, inv Invite) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return fmt.Errorf("mail: invalid from address: %w", err)
	}
	if err := msg.To(inv.To); err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	msg.Subject(inviteSubject)

	data := struct {
		Name, Role, Link, Code, Expiry string
	}{
		Name:   strings.TrimSpace(inv.Name),
		Role:   inv.Role,
		Link:   inv.Link,
		Code:   inv.Code,
		Expiry: formatExpiry(inv.ExpiresIn),
	}

	var text bytes.Buffer
	if err := inviteText.Execute(&text, data); err != nil {
		return err
	}
	var html bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		return err
	}
	msg.SetBodyString(gomail.TypeTextPlain, text.String())
	msg.AddAlternativeString(gomail.TypeTextHTML, html.String())

	opts := []gomail.Option{
		gomail.WithPort(m.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.Username),
			gomail.WithPassword(m.Password),
		)
	}

	client, err := gomail.NewClient(m.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", inv.To, err)
	}
	return nil
}

func formatExpiry(d time.Duration) string {
	if d <= 0 {
		d = time.Hour
	}
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
