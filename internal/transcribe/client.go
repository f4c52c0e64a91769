package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/capture"
	"github.com/park285/voicechess/internal/obslog"
)

var (
	// ErrUnavailable means the recognizer could not be reached or kept
	// returning server errors after the retry budget was spent.
	ErrUnavailable = errors.New("transcription service unavailable")
	// ErrEmpty means the recognizer answered but heard nothing usable.
	ErrEmpty = errors.New("empty transcription")
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	timeout  time.Duration
	retryMax int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, MaxConnsPerHost: 8},
		timeout:  30 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Transcription string `json:"transcription"`
	Text          string `json:"text"`
}

// Transcribe uploads one utterance as a WAV file and returns the recognized
// text, trimmed. Server errors are retried with backoff; client errors and
// empty results are not.
func (c *Client) Transcribe(ctx context.Context, clip capture.Clip) (string, error) {
	body, contentType, err := multipartWAV(clip)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + "/transcribe")
	req.Header.SetContentType(contentType)
	req.SetBody(body)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			if attempt == attempts {
				return "", lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return "", lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, status, truncate(string(resp.Body()), 256))
			if attempt == attempts || !shouldRetryStatus(status) {
				return "", lastErr
			}
			obslog.L().Warn("transcription retry", zap.Int("attempt", attempt), zap.Int("status", status))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return "", lastErr
			}
			continue
		}

		var out response
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		text := strings.TrimSpace(out.Transcription)
		if text == "" {
			text = strings.TrimSpace(out.Text)
		}
		if text == "" {
			return "", ErrEmpty
		}
		return text, nil
	}
	return "", lastErr
}

func multipartWAV(clip capture.Clip) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.WAV()); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.timeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.timeout)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
