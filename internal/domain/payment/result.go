package payment

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

var successPattern = regexp.MustCompile(`(?i)success|successfully processed`)

// Request is a single payment initiation sent to the provider.
type Request struct {
	Phone  PhoneNumber
	Amount int64
}

// Form encodes the request the way the provider expects it.
func (r Request) Form() url.Values {
	v := url.Values{}
	v.Set("numero", r.Phone.String())
	v.Set("amount", strconv.FormatInt(r.Amount, 10))
	return v
}

// Reply is the part of the provider response the gate consumes.
type Reply struct {
	StatusMessage    string
	HasStatusMessage bool
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Result is the tagged outcome of one attempt.
type Result struct {
	Outcome Outcome
	Kind    Kind
	Message string
}

func (r Result) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Success builds the success result for amount in currency.
func Success(amount int64, currency string) Result {
	return Result{
		Outcome: OutcomeSuccess,
		Message: fmt.Sprintf("Thanks for the %d %s!", amount, currency),
	}
}

// Failure builds a failure result of kind k. An empty message falls back to the kind default.
func Failure(k Kind, message string) Result {
	if message == "" {
		message = defaultMessage(k)
	}
	return Result{Outcome: OutcomeFailure, Kind: k, Message: message}
}

// Classify interprets the provider reply. Only a status message matching
// "success" or "successfully processed" (any case) counts as paid.
func Classify(reply Reply) (ok bool, message string) {
	if reply.HasStatusMessage && successPattern.MatchString(reply.StatusMessage) {
		return true, reply.StatusMessage
	}
	if reply.StatusMessage == "" {
		return false, MessagePaymentFailed
	}
	return false, reply.StatusMessage
}

func defaultMessage(k Kind) string {
	switch k {
	case KindMissingInput:
		return MessageMissingInput
	case KindInvalidFormat:
		return MessageInvalidFormat
	case KindNetworkFailure:
		return MessageNetworkFailure
	default:
		return MessagePaymentFailed
	}
}
