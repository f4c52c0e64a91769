package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPSynthesizer speaks the voice server's blocking contract: one POST per
// utterance, audio returned base64-encoded in the JSON body.
type HTTPSynthesizer struct {
	baseURL string
	http    *fasthttp.Client

	voiceRef    string
	temperature float64
	timeout     time.Duration
}

type HTTPOption func(*HTTPSynthesizer)

func WithVoiceRef(ref string) HTTPOption {
	return func(s *HTTPSynthesizer) { s.voiceRef = ref }
}

func WithTemperature(t float64) HTTPOption {
	return func(s *HTTPSynthesizer) { s.temperature = t }
}

func WithSynthTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSynthesizer) { s.timeout = d }
}

func NewHTTPSynthesizer(baseURL string, opts ...HTTPOption) *HTTPSynthesizer {
	s := &HTTPSynthesizer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &fasthttp.Client{ReadTimeout: 120 * time.Second, WriteTimeout: 30 * time.Second, MaxConnsPerHost: 4},
		temperature: 1.0,
		timeout:     120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type generateRequest struct {
	Transcript  string  `json:"transcript"`
	Temperature float64 `json:"temperature"`
	RefAudio    string  `json:"ref_audio,omitempty"`
	ReturnAudio string  `json:"return_audio"`
}

type generateResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{
		Transcript:  text,
		Temperature: s.temperature,
		RefAudio:    s.voiceRef,
		ReturnAudio: "base64",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(s.baseURL + "/generate")
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := s.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, fmt.Errorf("synthesis status=%d", status)
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.AudioBase64 == "" {
		return nil, fmt.Errorf("no audio in response")
	}
	wav, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return wav, nil
}
