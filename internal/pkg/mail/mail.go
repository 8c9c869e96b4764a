package mail

import (
	"context"
	"io"
)

// Message represents an email payload.
type Message struct {
	// From overrides the sender configured on the implementation.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// recipients returns every envelope recipient.
func (m Message) recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
