package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

func loudFrame(amplitude int16) []byte {
	buf := make([]byte, frameBytes)
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(amplitude))
	}
	return buf
}

func quietFrame() []byte { return make([]byte, frameBytes) }

func TestEndpointerDetectsUtterance(t *testing.T) {
	ep := newEndpointer(defaultEndpointConfig())

	// quiet lead-in
	for i := 0; i < 10; i++ {
		if chunk, ok := ep.Feed(quietFrame()); ok {
			t.Fatalf("triggered on silence (chunk %d bytes)", len(chunk))
		}
	}
	// one second of speech
	var chunk []byte
	var done bool
	for i := 0; i < 34 && !done; i++ {
		chunk, done = ep.Feed(loudFrame(4000))
	}
	if done {
		t.Fatalf("utterance ended while speech still running")
	}
	// trailing silence ends the chunk
	for i := 0; i < 60 && !done; i++ {
		chunk, done = ep.Feed(quietFrame())
	}
	if !done {
		t.Fatalf("utterance never ended after trailing silence")
	}
	if len(chunk) == 0 {
		t.Fatalf("empty chunk returned")
	}
}

func TestEndpointerShortChunkDiscarded(t *testing.T) {
	cfg := defaultEndpointConfig()
	cfg.MinChunk = 3 * time.Second
	ep := newEndpointer(cfg)
	done := false
	// roughly 1s of speech ends by silence but fails the min length gate,
	// so the endpointer keeps listening instead of emitting
	for i := 0; i < 34 && !done; i++ {
		_, done = ep.Feed(loudFrame(4000))
	}
	for i := 0; i < 80 && !done; i++ {
		_, done = ep.Feed(quietFrame())
	}
	if done {
		t.Fatalf("short chunk should have been discarded")
	}
	if ep.triggered {
		t.Fatalf("endpointer not reset after discard")
	}
}

func TestEndpointerQuietChunkDiscarded(t *testing.T) {
	cfg := defaultEndpointConfig()
	cfg.ChunkRMSMin = 10000 // nothing below this passes
	ep := newEndpointer(cfg)
	done := false
	for i := 0; i < 40 && !done; i++ {
		_, done = ep.Feed(loudFrame(4000))
	}
	for i := 0; i < 80 && !done; i++ {
		_, done = ep.Feed(quietFrame())
	}
	if done {
		t.Fatalf("quiet chunk should have been discarded")
	}
}

func TestEndpointerMaxChunkCutoff(t *testing.T) {
	cfg := defaultEndpointConfig()
	cfg.MaxChunk = 2 * time.Second
	ep := newEndpointer(cfg)
	var done bool
	var chunk []byte
	// continuous speech never goes quiet; cutoff must fire
	for i := 0; i < 200 && !done; i++ {
		chunk, done = ep.Feed(loudFrame(4000))
	}
	if !done {
		t.Fatalf("max chunk cutoff never fired")
	}
	if got := pcmDuration(len(chunk)); got > 3*time.Second {
		t.Fatalf("chunk too long: %v", got)
	}
}

func TestRMS16(t *testing.T) {
	if got := rms16(nil); got != 0 {
		t.Fatalf("rms of empty = %f", got)
	}
	if got := rms16(quietFrame()); got != 0 {
		t.Fatalf("rms of silence = %f", got)
	}
	if got := rms16(loudFrame(4000)); got < 3999 || got > 4001 {
		t.Fatalf("rms of constant 4000 = %f", got)
	}
}

func TestWAVHeader(t *testing.T) {
	c := Clip{PCM: make([]byte, 3200), SampleRate: SampleRate, Channels: 1}
	wav := c.WAV()
	if len(wav) != 44+3200 {
		t.Fatalf("wav length = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad header magic")
	}
	if binary.LittleEndian.Uint32(wav[24:28]) != SampleRate {
		t.Fatalf("bad sample rate field")
	}
	if binary.LittleEndian.Uint32(wav[40:44]) != 3200 {
		t.Fatalf("bad data size field")
	}
}

type scriptedSource struct {
	frames [][]byte
	repeat bool
	idx    int
}

func (s *scriptedSource) ReadFrame(buf []byte) error {
	if s.idx >= len(s.frames) {
		if !s.repeat || len(s.frames) == 0 {
			return io.EOF
		}
		s.idx = 0
	}
	copy(buf, s.frames[s.idx])
	s.idx++
	return nil
}

func (s *scriptedSource) Close() error { return nil }

func TestListenFromScriptedFrames(t *testing.T) {
	var frames [][]byte
	for i := 0; i < 10; i++ {
		frames = append(frames, quietFrame())
	}
	for i := 0; i < 40; i++ {
		frames = append(frames, loudFrame(4000))
	}
	for i := 0; i < 80; i++ {
		frames = append(frames, quietFrame())
	}
	src := &scriptedSource{frames: frames}
	clip, err := listenFrom(context.Background(), src, 5*time.Second, 1200*time.Millisecond, 10*time.Second)
	if err != nil {
		t.Fatalf("listenFrom: %v", err)
	}
	if clip.SampleRate != SampleRate || len(clip.PCM) == 0 {
		t.Fatalf("unexpected clip: rate=%d bytes=%d", clip.SampleRate, len(clip.PCM))
	}
}

func TestListenFromDeviceError(t *testing.T) {
	src := &scriptedSource{} // immediately EOF
	_, err := listenFrom(context.Background(), src, time.Second, time.Second, time.Second)
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
}

func TestListenFromCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{frames: [][]byte{quietFrame()}}
	if _, err := listenFrom(ctx, src, time.Second, time.Second, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListenSilentMicGivesUpWithinStartWindow(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{quietFrame()}, repeat: true}
	start := time.Now()
	_, err := listenFrom(context.Background(), src, 5*time.Second, time.Second, 50*time.Millisecond)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
	// the wait is bounded by the start window, not max duration plus slack
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("silent listen blocked for %v", elapsed)
	}
}
