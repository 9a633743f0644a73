package transport

import (
	"context"

	"github.com/park285/chess-duel/pkg/gamedto"
)

// State is the connection lifecycle of the realtime stream.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type EventCallback func(ev *gamedto.Event)

type StateCallback func(state State)

// Client is the realtime boundary: at-least-once, unordered event delivery
// plus command publishing. The session engine absorbs duplicates and gaps.
type Client interface {
	Connect(ctx context.Context) error
	OnEvent(cb EventCallback) int
	RemoveEventCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Publish(ctx context.Context, cmd *gamedto.Command) error
	Close(ctx context.Context) error
}
