package payment

import "errors"

var (
	ErrMissingInput    = errors.New("payment: phone number is required")
	ErrInvalidFormat   = errors.New("payment: phone number must match 074/077 followed by 6 digits")
	ErrNetworkFailure  = errors.New("payment: network failure")
	ErrRemoteRejection = errors.New("payment: rejected by provider")
)

// Kind classifies why an attempt did not succeed.
type Kind string

const (
	KindNone            Kind = ""
	KindMissingInput    Kind = "missing_input"
	KindInvalidFormat   Kind = "invalid_format"
	KindNetworkFailure  Kind = "network_failure"
	KindRemoteRejection Kind = "remote_rejection"
)

// User-facing messages surfaced through the feedback channel.
const (
	MessageMissingInput   = "Enter your number first."
	MessageInvalidFormat  = "Invalid number. It must start with 074 or 077 and contain exactly 9 digits."
	MessageNetworkFailure = "Network error. Try again."
	MessagePaymentFailed  = "Payment failed."
)

// KindOf maps an error onto the failure taxonomy. Unknown errors count as network failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMissingInput):
		return KindMissingInput
	case errors.Is(err, ErrInvalidFormat):
		return KindInvalidFormat
	case errors.Is(err, ErrRemoteRejection):
		return KindRemoteRejection
	default:
		return KindNetworkFailure
	}
}
