// Package notify delivers one-time codes to account holders over email or
// the department's SMS gateway.
package notify

import "context"

// Sender delivers a one-time code to a recipient. recipient is an email
// address for the mail sender and a mobile number for the SMS sender.
type Sender interface {
	Send(ctx context.Context, recipient, code string) error
}

// NoOp is a Sender that discards every code. Useful in tests and in
// deployments that surface the code through another channel.
type NoOp struct{}

// Send describes the send operation and its observable behavior.
func (NoOp) Send(context.Context, string, string) error { return nil }
