package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/samber/oops"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind names one lifecycle email.
type Kind string

const (
	KindVerification Kind = "verification"
	KindWelcome      Kind = "welcome"
	KindResetRequest Kind = "reset_request"
	KindResetSuccess Kind = "reset_success"
)

// Message is one rendered email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
	// Action is the code or link the recipient has to act on, if any. Only
	// development senders look at it.
	Action string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Options configures [New].
type Options struct {
	AppName         string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Notifier renders the lifecycle emails and hands them to a [Sender]. It
// implements [authflow.Notifier].
type Notifier struct {
	sender    Sender
	opts      Options
	templates map[Kind]*template.Template
}

var _ authflow.Notifier = (*Notifier)(nil)

var subjects = map[Kind]string{
	KindVerification: "Verify your email",
	KindWelcome:      "Welcome to %s",
	KindResetRequest: "Reset your password",
	KindResetSuccess: "Password Reset Successful",
}

// New parses the embedded templates.
func New(sender Sender, opts Options) (*Notifier, error) {
	if sender == nil {
		return nil, oops.Code("MAILER_CONFIG").Errorf("nil sender")
	}
	if opts.AppName == "" {
		opts.AppName = "authflow"
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}

	n := &Notifier{sender: sender, opts: opts, templates: make(map[Kind]*template.Template, len(subjects))}
	for kind := range subjects {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, oops.Code("MAILER_CONFIG").With("kind", kind).Wrap(err)
		}
		n.templates[kind] = t
	}
	return n, nil
}

type templateData struct {
	AppName   string
	Subject   string
	Name      string
	Code      string
	ResetURL  string
	ExpiresIn string
}

func (n *Notifier) render(kind Kind, to string, data templateData) (Message, error) {
	t, ok := n.templates[kind]
	if !ok {
		return Message{}, oops.Code("MAILER_TEMPLATE").Errorf("unknown email kind %q", kind)
	}

	subject := subjects[kind]
	if kind == KindWelcome {
		subject = fmt.Sprintf(subject, n.opts.AppName)
	}
	data.AppName = n.opts.AppName
	data.Subject = subject

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, oops.Code("MAILER_TEMPLATE").With("kind", kind).Wrap(err)
	}
	return Message{Kind: kind, To: to, Subject: subject, HTML: buf.String()}, nil
}

func (n *Notifier) deliver(ctx context.Context, kind Kind, to, action string, data templateData) error {
	msg, err := n.render(kind, to, data)
	if err != nil {
		return err
	}
	msg.Action = action
	return n.sender.Send(ctx, msg)
}

// SendVerificationEmail delivers the signup code.
func (n *Notifier) SendVerificationEmail(ctx context.Context, to, code string) error {
	return n.deliver(ctx, KindVerification, to, code, templateData{
		Code:      code,
		ExpiresIn: humanDuration(n.opts.VerificationTTL),
	})
}

// SendWelcomeEmail greets a freshly verified user.
func (n *Notifier) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return n.deliver(ctx, KindWelcome, to, "", templateData{Name: name})
}

// SendPasswordResetEmail delivers the reset link.
func (n *Notifier) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	return n.deliver(ctx, KindResetRequest, to, resetURL, templateData{
		ResetURL:  resetURL,
		ExpiresIn: humanDuration(n.opts.ResetTTL),
	})
}

// SendResetSuccessEmail confirms a completed reset.
func (n *Notifier) SendResetSuccessEmail(ctx context.Context, to string) error {
	return n.deliver(ctx, KindResetSuccess, to, "", templateData{})
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
