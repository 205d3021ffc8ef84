package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd creates a Bubble Tea command that waits for the next broker
// event on ch and returns it as a tea.Msg.
// Returns nil if the context is cancelled or the channel is closed.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			return event
		}
	}
}

// ContinuousListener keeps a broker subscription alive across Update calls.
// Call Listen again after handling each event to keep receiving.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes to the broker. The subscription is
// released when ctx is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Listen returns a tea.Cmd that waits for the next event.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}

// QueueListenCmd creates a Bubble Tea command that receives the next value
// from q and returns it unwrapped as the tea.Msg, so the Update switch can
// match on the value's own type.
// Returns nil once the queue is closed and drained, or ctx is cancelled.
func QueueListenCmd[T any](ctx context.Context, q *Queue[T]) tea.Cmd {
	return func() tea.Msg {
		v, ok := q.Recv(ctx)
		if !ok {
			return nil
		}
		return v
	}
}

// QueueListener is the Queue counterpart of ContinuousListener. Exactly one
// Listen command should be outstanding at a time; that keeps the Update loop
// the only consumer and preserves queue order.
type QueueListener[T any] struct {
	ctx context.Context
	q   *Queue[T]
}

// NewQueueListener creates a listener draining q until ctx is cancelled.
func NewQueueListener[T any](ctx context.Context, q *Queue[T]) *QueueListener[T] {
	return &QueueListener[T]{ctx: ctx, q: q}
}

// Listen returns a tea.Cmd that waits for the next queued value.
func (l *QueueListener[T]) Listen() tea.Cmd {
	return QueueListenCmd(l.ctx, l.q)
}
