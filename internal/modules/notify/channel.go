// README: Outbound delivery contract and per-medium routing.
package notify

import (
	"context"
	"errors"
	"fmt"

	"weride/internal/types"
)

var (
	// ErrDelivery wraps every channel failure; it never reaches lifecycle callers.
	ErrDelivery = errors.New("delivery failed")
	// ErrDemoMode is returned by channels that are not configured to send anything.
	ErrDemoMode = errors.New("demo mode")
)

// Message is one rendered notification handed to a channel.
type Message struct {
	RideID      types.ID
	Destination string
	Template    TemplateID
	Medium      Medium
	Vars        Vars
	Body        string
	Voice       string
	Gather      string
	Priority    bool
}

// Channel delivers a message and returns the provider's delivery id.
type Channel interface {
	Deliver(ctx context.Context, m Message) (string, error)
}

// Router sends each message to the channel registered for its medium.
// A medium without a channel is treated as demo mode.
type Router map[Medium]Channel

func (r Router) Deliver(ctx context.Context, m Message) (string, error) {
	ch, ok := r[m.Medium]
	if !ok || ch == nil {
		return "", ErrDemoMode
	}
	return ch.Deliver(ctx, m)
}

// DemoChannel accepts nothing; every dispatch through it is logged as skipped.
type DemoChannel struct{}

func (DemoChannel) Deliver(context.Context, Message) (string, error) { return "", ErrDemoMode }

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, m Message) (string, error)

func (f ChannelFunc) Deliver(ctx context.Context, m Message) (string, error) { return f(ctx, m) }

// Composer may rephrase a rendered voice body. Returning an error keeps the template text.
type Composer interface {
	Compose(ctx context.Context, m Message) (string, error)
}

func deliveryErr(medium Medium, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDelivery, medium, err)
}
