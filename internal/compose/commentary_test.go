package compose

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func commentaryServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		body := `{"choices":[{"message":{"role":"assistant","content":` + content + `}}]}`
		io.WriteString(w, body)
	}))
}

func TestCommentatorExtractsAnswer(t *testing.T) {
	srv := commentaryServer(t, `"thinking...\n</think>\n<answer>A classical opening.</answer>"`)
	defer srv.Close()

	c := NewCommentator(srv.URL, "", "test-model")
	got, ok := c.Comment(context.Background(), "rnbqkbnr/...")
	if !ok {
		t.Fatalf("Comment reported failure")
	}
	if got != "A classical opening." {
		t.Fatalf("comment = %q", got)
	}
}

func TestCommentatorMissingTagsFallsBack(t *testing.T) {
	srv := commentaryServer(t, `"no tags here"`)
	defer srv.Close()

	c := NewCommentator(srv.URL, "", "test-model")
	got, ok := c.Comment(context.Background(), "position")
	if !ok || got != "No comment." {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestCommentatorServerErrorSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCommentator(srv.URL, "", "test-model")
	if _, ok := c.Comment(context.Background(), "position"); ok {
		t.Fatalf("expected failure to be reported as ok=false")
	}
}

func TestNilCommentator(t *testing.T) {
	var c *Commentator
	if _, ok := c.Comment(context.Background(), "position"); ok {
		t.Fatalf("nil commentator must decline")
	}
}
