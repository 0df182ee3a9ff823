package entitlement

import (
	"context"
	"errors"
)

const (
	// Key names the persisted flag, identical across every store.
	Key = "hasPaidMelya"
	// Granted is the only stored value that reads as entitled.
	Granted = "true"
)

var ErrUnavailable = errors.New("entitlement: store unavailable")

// Store persists the visitor's unlock flag. It carries no identity, expiry or revocation.
type Store interface {
	Read(ctx context.Context) (bool, error)
	Write(ctx context.Context, granted bool) error
}

// Clearer is implemented by stores that support the development reset.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Decode interprets a stored value.
func Decode(v string) bool { return v == Granted }

// Encode renders granted for storage; false is stored as an empty value.
func Encode(granted bool) string {
	if granted {
		return Granted
	}
	return ""
}
