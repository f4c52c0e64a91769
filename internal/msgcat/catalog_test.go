package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("turn.illegal", map[string]string{"Description": "knight to f3"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "Did you try to play knight to f3? That isn't a legal move. Please try again."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResultKeys(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{
		"welcome.pve", "welcome.pvp",
		"result.pve.human_win", "result.pve.engine_win", "result.pve.draw",
		"result.pve.human_resigned", "result.pve.draw_agreed",
		"result.pvp.white_win", "result.pvp.black_win", "result.pvp.draw",
		"result.pvp.white_resigned", "result.pvp.black_resigned", "result.pvp.draw_agreed",
		"result.fallback",
		"draw.offered", "draw.engine_declined", "draw.accepted", "draw.declined",
		"turn.ambiguous", "turn.unrecognized", "turn.no_speech", "turn.exhausted",
	} {
		if _, err := c.Render(key, map[string]string{"Player": "white"}); err != nil {
			t.Errorf("Render(%s): %v", key, err)
		}
	}
}

func TestMissingKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if got := c.Line("no.such.key", nil, "fallback line"); got != "fallback line" {
		t.Fatalf("Line fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "turn:\n  unrecognized: \"Say that again?\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("turn.unrecognized", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Say that again?" {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their defaults
	if got, _ := c.Render("result.fallback", nil); got != "Game over!" {
		t.Fatalf("default lost: %q", got)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("turn:\n  illegal: \"x\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}
