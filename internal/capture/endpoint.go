package capture

import (
	"math"
	"time"
)

// endpointConfig tunes speech start/stop detection. Start detection is
// deliberately looser than end detection so word onsets are not clipped.
type endpointConfig struct {
	FrameDuration time.Duration
	PreRoll       time.Duration
	PostRoll      time.Duration
	MinChunk      time.Duration
	MaxChunk      time.Duration
	StartRatio    float64 // fraction of pre-roll frames that must be voiced to trigger
	EndRatio      float64 // fraction of post-roll frames that must be unvoiced to stop
	FrameRMSMin   float64
	ChunkRMSMin   float64
	StartWindow   time.Duration // how long to wait for speech to begin
}

func defaultEndpointConfig() endpointConfig {
	return endpointConfig{
		FrameDuration: 30 * time.Millisecond,
		PreRoll:       800 * time.Millisecond,
		PostRoll:      1200 * time.Millisecond,
		MinChunk:      500 * time.Millisecond,
		MaxChunk:      5 * time.Second,
		StartRatio:    0.55,
		EndRatio:      0.80,
		FrameRMSMin:   400,
		ChunkRMSMin:   300,
		StartWindow:   10 * time.Second,
	}
}

// endpointer accumulates fixed-size PCM16 frames and decides where an
// utterance starts and ends using an RMS energy gate with pre/post roll
// buffers. It is a pure state machine so it can be tested without a device.
type endpointer struct {
	cfg endpointConfig

	preN  int
	postN int

	triggered bool
	pre       [][]byte
	post      [][]byte
	voiced    [][]byte
	elapsed   time.Duration
}

func newEndpointer(cfg endpointConfig) *endpointer {
	preN := int(cfg.PreRoll / cfg.FrameDuration)
	if preN < 1 {
		preN = 1
	}
	postN := int(cfg.PostRoll / cfg.FrameDuration)
	if postN < 1 {
		postN = 1
	}
	return &endpointer{cfg: cfg, preN: preN, postN: postN}
}

// Feed consumes one frame. When a complete utterance has been collected it
// returns (chunk, true); otherwise (nil, false) and expects more frames.
func (e *endpointer) Feed(frame []byte) ([]byte, bool) {
	if !e.triggered {
		e.pre = appendBounded(e.pre, frame, e.preN)
		if len(e.pre) < e.preN {
			return nil, false
		}
		voted := 0
		for _, f := range e.pre {
			if rms16(f) >= e.cfg.FrameRMSMin {
				voted++
			}
		}
		if float64(voted) > e.cfg.StartRatio*float64(len(e.pre)) {
			e.triggered = true
			e.voiced = append(e.voiced, e.pre...)
			e.pre = nil
			e.elapsed = time.Duration(len(e.voiced)) * e.cfg.FrameDuration
		}
		return nil, false
	}

	e.voiced = append(e.voiced, frame)
	e.post = appendBounded(e.post, frame, e.postN)
	e.elapsed += e.cfg.FrameDuration

	unvoiced := 0
	for _, f := range e.post {
		if rms16(f) < e.cfg.FrameRMSMin {
			unvoiced++
		}
	}
	endsByQuiet := len(e.post) == e.postN && float64(unvoiced) > e.cfg.EndRatio*float64(len(e.post))
	if !endsByQuiet && e.elapsed < e.cfg.MaxChunk {
		return nil, false
	}

	chunk := flatten(e.voiced)
	length := e.elapsed
	e.reset()
	if length < e.cfg.MinChunk || rms16(chunk) < e.cfg.ChunkRMSMin {
		// too short or too quiet to be a move; keep listening
		return nil, false
	}
	return chunk, true
}

func (e *endpointer) reset() {
	e.triggered = false
	e.pre = nil
	e.post = nil
	e.voiced = nil
	e.elapsed = 0
}

func appendBounded(buf [][]byte, frame []byte, max int) [][]byte {
	buf = append(buf, frame)
	if len(buf) > max {
		buf = buf[1:]
	}
	return buf
}

func flatten(frames [][]byte) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// rms16 computes the root-mean-square of little-endian int16 PCM.
func rms16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(n))
}
