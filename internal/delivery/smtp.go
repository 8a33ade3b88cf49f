package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPPort is the submission port with STARTTLS.
const DefaultSMTPPort = 587

// SMTP delivers reports by email.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From    string
	Timeout time.Duration
	// Insecure allows plaintext connections, for local relays only.
	Insecure bool
}

func (s SMTP) Deliver(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	port := s.Port
	if port == 0 {
		port = DefaultSMTPPort
	}
	opts := []mail.Option{mail.WithPort(port)}
	if s.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	}
	if s.Insecure {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.Timeout))
	}

	client, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending report to %v: %w", msg.To, err)
	}
	return nil
}

func (s SMTP) buildMessage(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}
	from := s.From
	if from == "" {
		from = s.Username
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	subject := msg.Subject
	if subject == "" {
		subject = msg.Document.Subject
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Document.Markdown)
	if msg.Document.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.Document.HTML)
	}
	return m, nil
}
