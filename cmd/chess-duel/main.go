package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/api"
	"github.com/park285/chess-duel/internal/archive"
	appcfg "github.com/park285/chess-duel/internal/config"
	"github.com/park285/chess-duel/internal/msgcat"
	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/internal/session"
	"github.com/park285/chess-duel/internal/store"
	"github.com/park285/chess-duel/internal/transport"
	"github.com/park285/chess-duel/pkg/gamedto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	// one id per daemon run, attached to every upstream request
	instanceID := uuid.NewString()
	logger = logger.With(zap.String("instance_id", instanceID))
	headers := func() map[string]string {
		return map[string]string{
			"X-User-Id":         cfg.LocalUserID,
			"X-Client-Instance": instanceID,
		}
	}

	rt := &runtime{
		cfg:     cfg,
		cat:     cat,
		log:     logger,
		engines: make(map[string]*session.Engine),
	}

	if cfg.APIBaseURL != "" {
		rt.api = api.NewClient(cfg.APIBaseURL, api.WithRetry(3), api.WithHeaderProvider(headers))
	}
	if cfg.RedisURL != "" {
		st, err := store.NewFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		rt.store = st
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		rt.repo = repo
	}

	ws := transport.NewWebSocket(cfg.WSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state transport.State) {
		logger.Info("ws_state", zap.String("state", string(state)))
	})
	ws.OnEvent(func(ev *gamedto.Event) {
		rt.route(ev)
	})
	rt.ws = ws

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()

	rt.resumeStoredSession()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	rt.shutdown()
}

// runtime owns every per-game engine plus the shared collaborators. Engines
// are created lazily on the first event for an unknown game.
type runtime struct {
	cfg *appcfg.AppConfig
	cat *msgcat.Catalog
	log *zap.Logger

	ws    *transport.WebSocket
	api   *api.Client
	store *store.Store
	repo  *archive.Repository

	mu      sync.Mutex
	engines map[string]*session.Engine
}

func (rt *runtime) route(ev *gamedto.Event) {
	if ev == nil || strings.TrimSpace(ev.GameID) == "" {
		return
	}
	eng := rt.engineFor(ev.GameID)
	if eng == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	eng.HandleEvent(ctx, ev)
	rt.saveSnapshot(ctx, eng)
}

func (rt *runtime) engineFor(gameID string) *session.Engine {
	rt.mu.Lock()
	if eng, ok := rt.engines[gameID]; ok {
		rt.mu.Unlock()
		return eng
	}
	rt.mu.Unlock()

	snap := rt.lookupSnapshot(gameID)
	if snap == nil {
		rt.log.Warn("event_for_unknown_game", zap.String("game_id", gameID))
		return nil
	}

	eng, err := rt.buildEngine(snap)
	if err != nil {
		rt.log.Error("engine_build_failed", zap.String("game_id", gameID), zap.Error(err))
		return nil
	}

	rt.mu.Lock()
	if prior, ok := rt.engines[gameID]; ok {
		rt.mu.Unlock()
		eng.Close()
		return prior
	}
	rt.engines[gameID] = eng
	rt.mu.Unlock()
	eng.Start()
	return eng
}

// lookupSnapshot prefers the REST authority, falling back to the local
// resumable-session store.
func (rt *runtime) lookupSnapshot(gameID string) *gamedto.GameSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if rt.api != nil {
		snap, err := rt.api.FetchGame(ctx, gameID)
		if err != nil {
			rt.log.Warn("fetch_game_failed", zap.String("game_id", gameID), zap.Error(err))
		} else if snap != nil {
			return snap
		}
	}
	if rt.store != nil {
		snap, err := rt.store.LoadSession(ctx, gameID)
		if err != nil {
			rt.log.Warn("load_session_failed", zap.String("game_id", gameID), zap.Error(err))
		} else if snap != nil {
			return snap
		}
	}
	return nil
}

func (rt *runtime) buildEngine(snap *gamedto.GameSnapshot) (*session.Engine, error) {
	ecfg := session.Config{
		InactivityThreshold: rt.cfg.InactivityThreshold,
		ConfirmWindow:       rt.cfg.ConfirmWindow,
		ResumeWindow:        rt.cfg.ResumeWindow,
		WatchdogPoll:        rt.cfg.WatchdogPoll,
		FlagConfirmWait:     rt.cfg.FlagConfirmWait,
		ResumeGraceMs:       rt.cfg.ResumeGraceMs,
		SendTimeout:         10 * time.Second,
	}
	var persisters []session.Persister
	if rt.repo != nil {
		persisters = append(persisters, rt.repo)
	}
	if rt.api != nil {
		persisters = append(persisters, rt.api)
	}
	deps := session.Deps{
		Transport:  transport.NewGameChannel(rt.ws, snap.GameID),
		Persisters: persisters,
		Hooks:      rt.hooksFor(snap.GameID),
		Logger:     rt.log,
	}
	if rt.api != nil {
		deps.Resync = rt.api
	}
	return session.NewFromSnapshot(snap, rt.cfg.LocalUserID, ecfg, deps)
}

// hooksFor renders catalog messages to stdout. A richer UI would swap these
// callbacks out; the engine does not care.
func (rt *runtime) hooksFor(gameID string) session.Hooks {
	say := func(s string) {
		if s != "" {
			fmt.Println(s)
		}
	}
	return session.Hooks{
		OnStatus: func(st session.Status) {
			rt.log.Info("status_changed", zap.String("game_id", gameID), zap.String("status", string(st)))
			if st == session.StatusPaused {
				say(rt.cat.RenderOr("pause.local", nil, "Game paused."))
			}
		},
		OnClock: func(cs session.ClockState) {
			say(rt.cat.RenderOr("game.clock", map[string]any{
				"White": formatClock(cs.WhiteRemainingMs),
				"Black": formatClock(cs.BlackRemainingMs),
			}, ""))
		},
		OnPresencePrompt: func(deadline time.Time) {
			secs := int(time.Until(deadline).Seconds())
			if secs < 0 {
				secs = 0
			}
			say(rt.cat.RenderOr("presence.prompt", map[string]any{"ConfirmSeconds": secs},
				"Are you still there?"))
		},
		OnPresenceClear: func() {
			say(rt.cat.RenderOr("presence.cleared", nil, ""))
		},
		OnResumePrompt: func(req session.ResumeRequest) {
			say(rt.cat.RenderOr("resume.prompt", map[string]any{"RequesterName": req.RequestedBy},
				"Opponent wants to resume."))
		},
		OnNegotiation: func(st session.NegotiationStatus) {
			key := "resume." + string(st)
			if st == session.NegotiationPending {
				key = "resume.requested"
			}
			say(rt.cat.RenderOr(key, map[string]any{
				"OpponentName":  "opponent",
				"Turn":          "",
				"WindowSeconds": int(rt.cfg.ResumeWindow.Seconds()),
			}, string(st)))
		},
		OnEvaluation: func(res session.EvaluationResult) {
			rt.log.Info("move_evaluated",
				zap.String("game_id", gameID),
				zap.Int("move_index", res.MoveIndex),
				zap.String("classification", string(res.Classification)),
				zap.Int("score_delta", res.ScoreDelta))
		},
		OnGameOver: func(res session.GameResult) {
			say(rt.cat.RenderOr("game.over", map[string]any{
				"Result": res.Outcome,
				"Reason": res.EndReason,
			}, "Game over: "+res.Outcome))
		},
		OnOpponentConnection: func(state string) {
			rt.log.Info("opponent_presence", zap.String("game_id", gameID), zap.String("state", state))
		},
	}
}

// resumeStoredSession restores the most recent unfinished session for the
// local user after a restart.
func (rt *runtime) resumeStoredSession() {
	if rt.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := rt.store.ResumableSessionByUser(ctx, rt.cfg.LocalUserID)
	if err != nil {
		rt.log.Warn("resume_lookup_failed", zap.Error(err))
		return
	}
	if snap == nil {
		return
	}
	eng, err := rt.buildEngine(snap)
	if err != nil {
		rt.log.Error("resume_build_failed", zap.String("game_id", snap.GameID), zap.Error(err))
		return
	}
	rt.mu.Lock()
	rt.engines[snap.GameID] = eng
	rt.mu.Unlock()
	eng.Start()
	rt.log.Info("session_restored",
		zap.String("game_id", snap.GameID),
		zap.String("status", snap.Status),
		zap.Int("moves", len(snap.History)))
}

func (rt *runtime) saveSnapshot(ctx context.Context, eng *session.Engine) {
	if rt.store == nil {
		return
	}
	snap := eng.Snapshot()
	if err := rt.store.SaveSession(ctx, snap); err != nil {
		rt.log.Warn("save_session_failed", zap.String("game_id", snap.GameID), zap.Error(err))
	}
}

func (rt *runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rt.mu.Lock()
	engines := make([]*session.Engine, 0, len(rt.engines))
	for _, eng := range rt.engines {
		engines = append(engines, eng)
	}
	rt.mu.Unlock()
	for _, eng := range engines {
		rt.saveSnapshot(ctx, eng)
		eng.Close()
	}

	_ = rt.ws.Close(ctx)
	if rt.store != nil {
		_ = rt.store.Close()
	}
	if rt.repo != nil {
		_ = rt.repo.Close()
	}
	rt.log.Info("daemon_stopped")
}

func formatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
