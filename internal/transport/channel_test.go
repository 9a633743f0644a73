package transport

import (
	"context"
	"testing"
	"time"

	"github.com/park285/chess-duel/pkg/gamedto"
)

type captureClient struct {
	published []*gamedto.Command
	err       error
}

func (c *captureClient) Connect(ctx context.Context) error { return nil }
func (c *captureClient) OnEvent(cb EventCallback) int      { return 0 }
func (c *captureClient) RemoveEventCallback(id int)        {}
func (c *captureClient) OnStateChange(cb StateCallback) int {
	return 0
}
func (c *captureClient) RemoveStateCallback(id int) {}
func (c *captureClient) Close(ctx context.Context) error {
	return nil
}

func (c *captureClient) Publish(ctx context.Context, cmd *gamedto.Command) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, cmd)
	return nil
}

func TestGameChannelEnvelopes(t *testing.T) {
	cc := &captureClient{}
	ch := NewGameChannel(cc, "g1")
	ctx := context.Background()

	if err := ch.SendMove(ctx, "e2", "e4", "", gamedto.MoveMetrics{TimeSpentMs: 3000}); err != nil {
		t.Fatalf("SendMove: %v", err)
	}
	if err := ch.RequestPause(ctx); err != nil {
		t.Fatalf("RequestPause: %v", err)
	}
	if err := ch.RequestResume(ctx); err != nil {
		t.Fatalf("RequestResume: %v", err)
	}
	if err := ch.RespondResume(ctx, true); err != nil {
		t.Fatalf("RespondResume: %v", err)
	}
	if err := ch.Resign(ctx); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if err := ch.ReportFlag(ctx, "white"); err != nil {
		t.Fatalf("ReportFlag: %v", err)
	}

	if len(cc.published) != 6 {
		t.Fatalf("published %d commands, want 6", len(cc.published))
	}
	wantTypes := []string{
		gamedto.CommandSendMove,
		gamedto.CommandRequestPause,
		gamedto.CommandRequestResume,
		gamedto.CommandRespondResume,
		gamedto.CommandResign,
		gamedto.CommandReportFlag,
	}
	for i, cmd := range cc.published {
		if cmd.Type != wantTypes[i] {
			t.Fatalf("command %d type = %q, want %q", i, cmd.Type, wantTypes[i])
		}
		if cmd.GameID != "g1" {
			t.Fatalf("command %d game id = %q", i, cmd.GameID)
		}
	}

	mv := cc.published[0]
	if mv.From != "e2" || mv.To != "e4" {
		t.Fatalf("move fields = %+v", mv)
	}
	if mv.Metrics == nil || mv.Metrics.TimeSpentMs != 3000 {
		t.Fatalf("metrics = %+v", mv.Metrics)
	}
	resp := cc.published[3]
	if resp.Accept == nil || !*resp.Accept {
		t.Fatalf("accept = %+v", resp.Accept)
	}
	if cc.published[5].Color != "white" {
		t.Fatalf("flag color = %q", cc.published[5].Color)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	ws := NewWebSocket("ws://example/ws", 5, time.Second)
	if d := ws.backoff(1); d != time.Second {
		t.Fatalf("backoff(1) = %v, want 1s", d)
	}
	if d := ws.backoff(3); d != 4*time.Second {
		t.Fatalf("backoff(3) = %v, want 4s", d)
	}
	if d := ws.backoff(10); d != 30*time.Second {
		t.Fatalf("backoff(10) = %v, want capped 30s", d)
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	ws := NewWebSocket("ws://example/ws", 1, time.Second)
	err := ws.Publish(context.Background(), &gamedto.Command{Type: gamedto.CommandResign, GameID: "g1"})
	if err == nil {
		t.Fatalf("publish on a dead socket succeeded")
	}
}
