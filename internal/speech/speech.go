// Package speech turns composed text into audible output: synthesis through
// a remote voice server, playback through a local ffplay process.
package speech

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/obslog"
)

var (
	// ErrSynthesisUnavailable means no synthesis backend produced audio.
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")
	// ErrDevice means the audio output device could not be used.
	ErrDevice = errors.New("audio output device error")
)

// Synthesizer produces WAV bytes for a sentence.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays WAV bytes to completion.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// Speaker binds a synthesizer chain to a player. When a primary (streaming)
// synthesizer is configured it is tried first and the HTTP one serves as
// fallback.
type Speaker struct {
	primary  Synthesizer // may be nil
	fallback Synthesizer
	player   Player
}

func NewSpeaker(primary, fallback Synthesizer, player Player) *Speaker {
	return &Speaker{primary: primary, fallback: fallback, player: player}
}

// Speak synthesizes text and plays it, blocking until playback finishes.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	wav, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}
	if err := s.player.Play(ctx, wav); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

func (s *Speaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.primary != nil {
		wav, err := s.primary.Synthesize(ctx, text)
		if err == nil {
			return wav, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		obslog.L().Warn("streaming synthesis failed, falling back", zap.Error(err))
	}
	if s.fallback == nil {
		return nil, ErrSynthesisUnavailable
	}
	wav, err := s.fallback.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}
	return wav, nil
}
