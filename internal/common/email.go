package common

// EmailSender delivers booking confirmation mail. Implementations are
// injected into the side-effect dispatcher; the from address comes from
// configuration so one sender can serve every admin.
type EmailSender interface {
	Send(from, to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records sent mail for tests instead of delivering it.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(from, to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{From: from, To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender drops mail, used when no provider is configured.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string, string) error { return nil }
