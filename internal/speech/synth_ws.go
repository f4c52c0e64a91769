package speech

import (
	"context"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// StreamSynthesizer requests synthesis over a websocket and collects the
// audio as chunked binary frames. The server signals completion either with
// a normal close or a final text frame. One connection serves one utterance.
type StreamSynthesizer struct {
	wsURL string

	voiceRef    string
	temperature float64
	dialTimeout time.Duration
	readTimeout time.Duration
}

func NewStreamSynthesizer(wsURL, voiceRef string, temperature float64) *StreamSynthesizer {
	return &StreamSynthesizer{
		wsURL:       wsURL,
		voiceRef:    voiceRef,
		temperature: temperature,
		dialTimeout: 10 * time.Second,
		readTimeout: 120 * time.Second,
	}
}

type streamRequest struct {
	Transcript  string  `json:"transcript"`
	Temperature float64 `json:"temperature"`
	RefAudio    string  `json:"ref_audio,omitempty"`
}

func (s *StreamSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dial synthesis stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(16 << 20)

	readCtx, cancelRead := context.WithTimeout(ctx, s.readTimeout)
	defer cancelRead()

	if err := wsjson.Write(readCtx, conn, streamRequest{
		Transcript:  text,
		Temperature: s.temperature,
		RefAudio:    s.voiceRef,
	}); err != nil {
		return nil, fmt.Errorf("send synthesis request: %w", err)
	}

	var wav []byte
	for {
		typ, data, err := conn.Read(readCtx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(wav) > 0 {
				return wav, nil
			}
			return nil, fmt.Errorf("read synthesis stream: %w", err)
		}
		switch typ {
		case websocket.MessageBinary:
			wav = append(wav, data...)
		case websocket.MessageText:
			// any text frame after audio marks the end of the utterance
			if len(wav) > 0 {
				return wav, nil
			}
		}
	}
}
