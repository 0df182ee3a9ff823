package payment

import (
	"context"

	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
)

// Processor is an outbound port for the mobile-money provider.
// It belongs to the application layer to express use-case dependencies.
type Processor interface {
	Initiate(ctx context.Context, req dompay.Request) (dompay.Reply, error)
}

type IDGenerator interface {
	NewID() string
}
