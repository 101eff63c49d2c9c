package bridge

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRate is the outbound send rate used when none is configured
const DefaultRate = 5

// Limited paces outbound sends of the wrapped bridge
type Limited struct {
	Bridge
	limiter *rate.Limiter
}

// NewLimited wraps b with a limiter of perSecond sends and the given burst.
// A non-positive rate falls back to DefaultRate.
func NewLimited(b Bridge, perSecond float64, burst int) *Limited {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		Bridge:  b,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send waits for a token or for ctx to end
func (l *Limited) Send(ctx context.Context, channelID, text string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.Bridge.Send(ctx, channelID, text)
}
