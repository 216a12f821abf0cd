// internal/domain/sms/client.go
package sms

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure so retry decisions are structural
// rather than string matching on error messages.
type ErrorKind int

const (
	// KindTransient covers network faults, timeouts and gateway throttling;
	// the send may succeed if retried.
	KindTransient ErrorKind = iota + 1
	// KindPermanent covers invalid recipients, auth failures and unsubscribed
	// recipients; retrying can never succeed.
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// GatewayError is a failure from the SMS gateway with an explicit kind and,
// when available, the provider's numeric error code.
type GatewayError struct {
	Kind ErrorKind
	Code int
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sms gateway %s: %s error (code %d): %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("sms gateway %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a gateway error worth retrying.
func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindTransient
}

// IsPermanent reports whether err is a gateway error that must not be retried.
func IsPermanent(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindPermanent
}

// SendResult is the gateway's acknowledgment of an accepted outbound message.
type SendResult struct {
	MessageID string
	Status    string
}

// Client sends SMS through the external gateway. Implementations own the
// sender number, per-attempt timeouts, throttling and bounded retries for
// transient failures; permanent failures surface immediately.
type Client interface {
	Send(ctx context.Context, to, body string) (*SendResult, error)
}

// InboundMessage is a reply received through the gateway's webhook, already
// reduced to the fields this core consumes.
type InboundMessage struct {
	MessageID string
	From      string
	To        string
	Body      string
}

// StatusUpdate is a best-effort delivery-status callback for a previously
// sent message.
type StatusUpdate struct {
	MessageID string
	Status    string
	ErrorCode int
}
