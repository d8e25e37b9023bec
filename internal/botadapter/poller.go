package botadapter

import (
	"context"

	"golang.org/x/time/rate"
)

// PollingClient wraps Client with a rate limiter so that a burst of
// client-facing /status requests for the same meeting cannot translate
// into a burst of outbound calls to the provider.
type PollingClient struct {
	*Client
	limiter *rate.Limiter
}

// NewPollingClient wraps client with a limiter admitting at most
// perSecond status polls per second, bursting up to 1.
func NewPollingClient(client *Client, perSecond float64) *PollingClient {
	return &PollingClient{
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Status waits for rate-limiter admission, then delegates to the wrapped
// Client.
func (p *PollingClient) Status(ctx context.Context, botID string) (Status, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Status{}, err
	}
	return p.Client.Status(ctx, botID)
}
