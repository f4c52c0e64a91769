package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the immutable process configuration, fixed at startup.
type AppConfig struct {
	TranscribeURL string
	SynthesisURL  string
	SynthesisWS   string
	VoiceRef      string

	CommentaryURL   string
	CommentaryModel string
	CommentaryKey   string

	RedisURL    string
	DatabaseURL string

	StockfishPath   string
	EngineSkill     int
	EngineMoveTime  time.Duration
	RetryBudget     int
	ListenMax       time.Duration
	SilenceTimeout  time.Duration
	SpeechStartMax  time.Duration
	CommentaryOdds  float64
	DrawAcceptOdds  float64
	SnapshotDir     string
	FFmpegPath      string
	FFplayPath      string
	CaptureDevice   string
	MessageOverride string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineSkill:    15,
		EngineMoveTime: time.Second,
		RetryBudget:    3,
		ListenMax:      8 * time.Second,
		SilenceTimeout: 1200 * time.Millisecond,
		SpeechStartMax: 10 * time.Second,
		CommentaryOdds: 0.5,
		DrawAcceptOdds: 0.3,
		FFmpegPath:     "ffmpeg",
		FFplayPath:     "ffplay",
	}

	cfg.TranscribeURL = strings.TrimSpace(os.Getenv("TRANSCRIBE_URL"))
	cfg.SynthesisURL = strings.TrimSpace(os.Getenv("SYNTHESIS_URL"))
	cfg.SynthesisWS = strings.TrimSpace(os.Getenv("SYNTHESIS_WS_URL"))
	cfg.VoiceRef = strings.TrimSpace(os.Getenv("VOICE_REF"))

	cfg.CommentaryURL = strings.TrimSpace(os.Getenv("COMMENTARY_URL"))
	cfg.CommentaryModel = strings.TrimSpace(os.Getenv("COMMENTARY_MODEL"))
	cfg.CommentaryKey = strings.TrimSpace(os.Getenv("COMMENTARY_API_KEY"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_SKILL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 20 {
			cfg.EngineSkill = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMoveTime = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_BUDGET")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryBudget = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_MAX_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ListenMax = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("SILENCE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SilenceTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("SPEECH_START_MAX_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SpeechStartMax = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("COMMENTARY_ODDS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.CommentaryOdds = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("DRAW_ACCEPT_ODDS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.DrawAcceptOdds = f
		}
	}
	cfg.SnapshotDir = strings.TrimSpace(os.Getenv("SNAPSHOT_DIR"))
	if v := strings.TrimSpace(os.Getenv("FFMPEG_PATH")); v != "" {
		cfg.FFmpegPath = v
	}
	if v := strings.TrimSpace(os.Getenv("FFPLAY_PATH")); v != "" {
		cfg.FFplayPath = v
	}
	cfg.CaptureDevice = strings.TrimSpace(os.Getenv("CAPTURE_DEVICE"))
	cfg.MessageOverride = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if cfg.TranscribeURL == "" {
		return nil, errors.New("TRANSCRIBE_URL is required")
	}
	if cfg.SynthesisURL == "" && cfg.SynthesisWS == "" {
		return nil, errors.New("SYNTHESIS_URL or SYNTHESIS_WS_URL is required")
	}

	return cfg, nil
}
