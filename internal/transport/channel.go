package transport

import (
	"context"
	"errors"

	"github.com/park285/chess-duel/pkg/gamedto"
)

var ErrNotConnected = errors.New("websocket not connected")

// GameChannel binds a realtime client to one game, giving the session
// engine a transport view without game-id plumbing.
type GameChannel struct {
	client Client
	gameID string
}

func NewGameChannel(client Client, gameID string) *GameChannel {
	return &GameChannel{client: client, gameID: gameID}
}

func (c *GameChannel) SendMove(ctx context.Context, from, to, promotion string, metrics gamedto.MoveMetrics) error {
	return c.client.Publish(ctx, &gamedto.Command{
		Type:      gamedto.CommandSendMove,
		GameID:    c.gameID,
		From:      from,
		To:        to,
		Promotion: promotion,
		Metrics:   &metrics,
	})
}

func (c *GameChannel) RequestPause(ctx context.Context) error {
	return c.client.Publish(ctx, &gamedto.Command{Type: gamedto.CommandRequestPause, GameID: c.gameID})
}

func (c *GameChannel) RequestResume(ctx context.Context) error {
	return c.client.Publish(ctx, &gamedto.Command{Type: gamedto.CommandRequestResume, GameID: c.gameID})
}

func (c *GameChannel) RespondResume(ctx context.Context, accept bool) error {
	return c.client.Publish(ctx, &gamedto.Command{Type: gamedto.CommandRespondResume, GameID: c.gameID, Accept: &accept})
}

func (c *GameChannel) Resign(ctx context.Context) error {
	return c.client.Publish(ctx, &gamedto.Command{Type: gamedto.CommandResign, GameID: c.gameID})
}

func (c *GameChannel) ReportFlag(ctx context.Context, side string) error {
	return c.client.Publish(ctx, &gamedto.Command{Type: gamedto.CommandReportFlag, GameID: c.gameID, Color: side})
}
