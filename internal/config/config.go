package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds everything the client daemon needs, loaded from env.
type AppConfig struct {
	WSURL      string
	APIBaseURL string

	RedisURL    string
	DatabaseURL string

	LocalUserID   string
	LocalUserName string

	TimeControlMs int64

	InactivityThreshold time.Duration
	ConfirmWindow       time.Duration
	ResumeWindow        time.Duration
	WatchdogPoll        time.Duration
	FlagConfirmWait     time.Duration
	ResumeGraceMs       int64

	MsgTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		TimeControlMs:       600_000,
		InactivityThreshold: 60 * time.Second,
		ConfirmWindow:       10 * time.Second,
		ResumeWindow:        10 * time.Second,
		WatchdogPoll:        time.Second,
		FlagConfirmWait:     10 * time.Second,
		ResumeGraceMs:       40_000,
	}

	cfg.WSURL = strings.TrimSpace(os.Getenv("DUEL_WS_URL"))
	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("DUEL_API_BASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.LocalUserID = strings.TrimSpace(os.Getenv("DUEL_USER_ID"))
	cfg.LocalUserName = strings.TrimSpace(os.Getenv("DUEL_USER_NAME"))
	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL_MS")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, errors.New("TIME_CONTROL_MS must be a positive integer")
		}
		cfg.TimeControlMs = n
	}
	if d, ok := secondsEnv("INACTIVITY_THRESHOLD_SEC"); ok {
		cfg.InactivityThreshold = d
	}
	if d, ok := secondsEnv("CONFIRM_WINDOW_SEC"); ok {
		cfg.ConfirmWindow = d
	}
	if d, ok := secondsEnv("RESUME_WINDOW_SEC"); ok {
		cfg.ResumeWindow = d
	}
	if d, ok := secondsEnv("FLAG_CONFIRM_WAIT_SEC"); ok {
		cfg.FlagConfirmWait = d
	}
	if v := strings.TrimSpace(os.Getenv("RESUME_GRACE_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.ResumeGraceMs = n
		}
	}

	if cfg.WSURL == "" {
		return nil, errors.New("DUEL_WS_URL is required")
	}
	if cfg.LocalUserID == "" {
		return nil, errors.New("DUEL_USER_ID is required")
	}
	return cfg, nil
}

func secondsEnv(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
