package email

import "context"

// Message is one rendered notification, addressed and ready to send.
// TextBody is always set; HTMLBody is optional and preferred by capable
// mail clients when both are present.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers rendered notifications. Implementations honor ctx
// cancellation mid-delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
