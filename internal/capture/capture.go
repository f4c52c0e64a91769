// Package capture records a single spoken utterance from the microphone,
// delimiting it with an energy-based endpoint detector.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/park285/voicechess/internal/obslog"
	"go.uber.org/zap"
)

const (
	SampleRate = 16000
	Channels   = 1
	frameBytes = SampleRate * 2 * 30 / 1000 // 30ms of PCM16 mono
)

var (
	ErrNoSpeech = errors.New("no speech detected")
	ErrDevice   = errors.New("audio capture device error")
)

// Clip is one captured or synthesized utterance as raw PCM16 audio.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// WAV wraps the PCM payload in a RIFF/WAVE header for upload.
func (c Clip) WAV() []byte {
	data := c.PCM
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(data)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(c.SampleRate*c.Channels*2))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(c.Channels*2))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(data)))
	return append(hdr, data...)
}

// frameSource yields fixed-size PCM frames from a device.
type frameSource interface {
	ReadFrame(buf []byte) error
	Close() error
}

// Recorder owns the microphone for the duration of one Listen call and
// releases it on every exit path.
type Recorder struct {
	ffmpegPath  string
	device      string
	startWindow time.Duration
}

// RecorderOption adjusts listening behavior.
type RecorderOption func(*Recorder)

// WithStartWindow bounds how long a Listen call waits for speech to begin
// before giving up with ErrNoSpeech.
func WithStartWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.startWindow = d }
}

func NewRecorder(ffmpegPath, device string, opts ...RecorderOption) *Recorder {
	r := &Recorder{ffmpegPath: ffmpegPath, device: device}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Listen records until trailing silence exceeds silenceTimeout or maxDuration
// elapses, and returns the voiced segment. It blocks the caller; cancellation
// comes through ctx.
func (r *Recorder) Listen(ctx context.Context, maxDuration, silenceTimeout time.Duration) (Clip, error) {
	mic, err := newFFmpegMic(r.ffmpegPath, r.device)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	defer mic.Close()
	return listenFrom(ctx, mic, maxDuration, silenceTimeout, r.startWindow)
}

func listenFrom(ctx context.Context, src frameSource, maxDuration, silenceTimeout, startWindow time.Duration) (Clip, error) {
	cfg := defaultEndpointConfig()
	if maxDuration > 0 {
		cfg.MaxChunk = maxDuration
	}
	if silenceTimeout > 0 {
		cfg.PostRoll = silenceTimeout
	}
	if startWindow > 0 {
		cfg.StartWindow = startWindow
	}
	ep := newEndpointer(cfg)

	// Speech must begin within the start window; once triggered, the
	// endpointer's own max-chunk cutoff bounds the utterance.
	deadline := time.Now().Add(cfg.StartWindow)

	buf := make([]byte, frameBytes)
	for {
		if err := ctx.Err(); err != nil {
			return Clip{}, err
		}
		if !ep.triggered && time.Now().After(deadline) {
			return Clip{}, ErrNoSpeech
		}
		if err := src.ReadFrame(buf); err != nil {
			return Clip{}, fmt.Errorf("%w: %v", ErrDevice, err)
		}
		frame := make([]byte, len(buf))
		copy(frame, buf)
		if chunk, ok := ep.Feed(frame); ok {
			obslog.L().Debug("utterance captured",
				zap.Int("bytes", len(chunk)),
				zap.Duration("length", pcmDuration(len(chunk))),
			)
			return Clip{PCM: chunk, SampleRate: SampleRate, Channels: Channels}, nil
		}
	}
}

func pcmDuration(n int) time.Duration {
	return time.Duration(n/2) * time.Second / SampleRate
}
