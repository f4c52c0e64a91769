package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/voicechess/internal/capture"
)

func testClip() capture.Clip {
	return capture.Clip{PCM: make([]byte, 3200), SampleRate: capture.SampleRate, Channels: capture.Channels}
}

func TestTranscribeReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			wav, _ := io.ReadAll(f)
			if len(wav) < 44 || string(wav[0:4]) != "RIFF" {
				t.Errorf("upload is not a WAV (%d bytes)", len(wav))
			}
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"transcription":"  knight to f3 "}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	text, err := c.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "knight to f3" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeTextFieldFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":"pawn to e4"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	text, err := c.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "pawn to e4" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"transcription":""}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Transcribe(context.Background(), testClip()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"transcription":"castle kingside"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	text, err := c.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "castle kingside" {
		t.Fatalf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTranscribeGivesUpAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(2))
	if _, err := c.Transcribe(context.Background(), testClip()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTranscribeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	if _, err := c.Transcribe(context.Background(), testClip()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTranscribeUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithRetry(1), WithTimeout(500*time.Millisecond))
	if _, err := c.Transcribe(context.Background(), testClip()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
