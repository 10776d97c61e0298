package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoRecipient is returned when a message has no address.
var ErrNoRecipient = errors.New("notify: no recipient")

// Message is one outbound notification. To is an email address; channels
// that are not email resolve their own address from it.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Fanout sends to every child concurrently and joins their errors. Each
// child gets the whole of ctx's deadline.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, msg Message) error {
	errs := make([]error, len(f))
	var wg sync.WaitGroup
	for i, n := range f {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = n.Send(ctx, msg)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Nop logs messages instead of delivering them.
type Nop struct {
	log zerolog.Logger
}

func NewNop(log zerolog.Logger) *Nop {
	return &Nop{log: log.With().Str("component", "notify").Logger()}
}

func (n *Nop) Send(_ context.Context, msg Message) error {
	n.log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification dropped: no channel configured")
	return nil
}
