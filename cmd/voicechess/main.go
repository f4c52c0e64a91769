package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/capture"
	"github.com/park285/voicechess/internal/compose"
	appcfg "github.com/park285/voicechess/internal/config"
	"github.com/park285/voicechess/internal/coord"
	"github.com/park285/voicechess/internal/engine"
	"github.com/park285/voicechess/internal/game"
	"github.com/park285/voicechess/internal/msgcat"
	"github.com/park285/voicechess/internal/obslog"
	"github.com/park285/voicechess/internal/render"
	"github.com/park285/voicechess/internal/speech"
	"github.com/park285/voicechess/internal/store"
	"github.com/park285/voicechess/internal/transcribe"
)

func main() {
	mode := flag.String("mode", "pve", "game mode: pve or pvp")
	color := flag.String("color", "white", "human side in pve: white or black")
	resume := flag.String("resume", "", "game id of a saved session to resume")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cat, err := msgcat.New(cfg.MessageOverride)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := capture.NewRecorder(cfg.FFmpegPath, cfg.CaptureDevice,
		capture.WithStartWindow(cfg.SpeechStartMax))
	transcriber := transcribe.NewClient(cfg.TranscribeURL)
	speaker := buildSpeaker(cfg)

	sessionCfg := coord.SessionConfig{
		Mode:           coord.Mode(*mode),
		HumanColor:     humanColor(*color),
		RetryBudget:    cfg.RetryBudget,
		ListenMax:      cfg.ListenMax,
		SilenceTimeout: cfg.SilenceTimeout,
		Commentary:     cfg.CommentaryURL != "",
		CommentaryOdds: cfg.CommentaryOdds,
		DrawAcceptOdds: cfg.DrawAcceptOdds,
	}

	opts := []coord.Option{}
	var sessions *store.SessionStore

	if cfg.RedisURL != "" {
		ropt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(ropt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			obslog.L().Warn("redis unreachable, session snapshots disabled", zap.Error(err))
		} else {
			sessions = store.NewSessionStore(rdb)
			opts = append(opts, coord.WithSessionStore(sessions))
		}
	}

	st := game.NewState()
	if *resume != "" {
		if sessions == nil {
			log.Fatal("-resume requires REDIS_URL")
		}
		snap, err := sessions.Load(ctx, *resume)
		if err != nil {
			log.Fatalf("load session %s: %v", *resume, err)
		}
		if snap == nil {
			log.Fatalf("no saved session %s", *resume)
		}
		st, err = game.Restore(snap.GameID, snap.StartedAt, snap.Record)
		if err != nil {
			log.Fatalf("restore session %s: %v", *resume, err)
		}
		sessionCfg.Mode = coord.Mode(snap.Mode)
	}

	if sessionCfg.Mode == coord.ModePvE {
		if cfg.StockfishPath == "" {
			log.Fatal("STOCKFISH_PATH is required for pve mode")
		}
		eng, err := engine.NewSession(ctx, cfg.StockfishPath, engine.Options{
			SkillLevel: cfg.EngineSkill,
			MoveTime:   cfg.EngineMoveTime,
		})
		if err != nil {
			log.Fatalf("engine init error: %v", err)
		}
		defer eng.Close()
		opts = append(opts, coord.WithEngine(eng))
	}

	if cfg.CommentaryURL != "" {
		opts = append(opts, coord.WithCommentator(
			compose.NewCommentator(cfg.CommentaryURL, cfg.CommentaryKey, cfg.CommentaryModel)))
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database open error: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			obslog.L().Warn("database unreachable, archiving disabled", zap.Error(err))
		} else {
			opts = append(opts, coord.WithArchive(store.NewArchive(db)))
		}
	}

	if cfg.SnapshotDir != "" {
		renderer, err := render.NewRenderer(cfg.SnapshotDir, 512)
		if err != nil {
			obslog.L().Warn("snapshot renderer disabled", zap.Error(err))
		} else {
			opts = append(opts, coord.WithRenderer(renderer))
		}
	}

	c := coord.New(sessionCfg, st, recorder, transcriber, speaker, cat, opts...)

	res, err := c.Run(ctx)
	if err != nil && ctx.Err() == nil {
		obslog.L().Error("session ended with error", zap.Error(err))
		os.Exit(1)
	}
	obslog.L().Info("session finished",
		zap.String("status", string(res.Status)),
		zap.String("winner", string(res.Winner)),
		zap.String("reason", res.Reason),
	)
}

func buildSpeaker(cfg *appcfg.AppConfig) *speech.Speaker {
	var primary, fallback speech.Synthesizer
	if cfg.SynthesisWS != "" {
		primary = speech.NewStreamSynthesizer(cfg.SynthesisWS, cfg.VoiceRef, 0.8)
	}
	if cfg.SynthesisURL != "" {
		s := speech.NewHTTPSynthesizer(cfg.SynthesisURL, speech.WithVoiceRef(cfg.VoiceRef))
		if primary == nil {
			primary = s
		} else {
			fallback = s
		}
	}
	return speech.NewSpeaker(primary, fallback, speech.NewFFPlayPlayer(cfg.FFplayPath))
}

func humanColor(s string) game.Color {
	if s == "black" {
		return game.Black
	}
	return game.White
}
