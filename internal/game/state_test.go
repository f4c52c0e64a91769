package game

import (
	"errors"
	"testing"
)

func TestApplySANLegalMove(t *testing.T) {
	s := NewState()
	entry, err := s.ApplySAN("e4")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	if entry.Mover != White {
		t.Fatalf("mover = %s, want white", entry.Mover)
	}
	if entry.UCI != "e2e4" {
		t.Fatalf("uci = %q, want e2e4", entry.UCI)
	}
	if s.Turn() != Black {
		t.Fatalf("turn = %s, want black", s.Turn())
	}
	if got := len(s.Record()); got != 1 {
		t.Fatalf("record length = %d, want 1", got)
	}
}

func TestApplySANIllegalMoveLeavesStateUntouched(t *testing.T) {
	s := NewState()
	before := s.FEN()
	if _, err := s.ApplySAN("e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if s.FEN() != before {
		t.Fatalf("board changed after rejected move")
	}
	if len(s.Record()) != 0 {
		t.Fatalf("record grew after rejected move")
	}
	// rejection is idempotent
	if _, err := s.ApplySAN("e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove on repeat, got %v", err)
	}
	if s.FEN() != before {
		t.Fatalf("board changed after second rejected move")
	}
}

func TestEveryLegalMoveApplies(t *testing.T) {
	s := NewState()
	legal := s.LegalMoves()
	if len(legal) != 20 {
		t.Fatalf("starting position has %d legal moves, want 20", len(legal))
	}
	for _, lm := range legal {
		fresh := NewState()
		if _, err := fresh.ApplySAN(lm.SAN); err != nil {
			t.Fatalf("legal move %s rejected: %v", lm.SAN, err)
		}
	}
}

func TestLegalMoveAttributes(t *testing.T) {
	s := NewState()
	mustApply(t, s, "e4", "d5")
	var capture *LegalMove
	for _, lm := range s.LegalMoves() {
		if lm.SAN == "exd5" {
			capture = &lm
			break
		}
	}
	if capture == nil {
		t.Fatalf("exd5 not in legal-move set")
	}
	if !capture.Capture || capture.Piece != "pawn" || capture.To != "d5" {
		t.Fatalf("unexpected attributes: %+v", capture)
	}
}

func TestCheckmateOutcome(t *testing.T) {
	s := NewState()
	// fool's mate
	mustApply(t, s, "f3", "e5", "g4", "Qh4#")
	res := s.Terminal()
	if res.Status != StatusCheckmate {
		t.Fatalf("status = %s, want checkmate", res.Status)
	}
	if res.Winner != Black {
		t.Fatalf("winner = %s, want black", res.Winner)
	}
	if _, err := s.ApplySAN("a3"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("move accepted after checkmate: %v", err)
	}
}

func TestStalemateOutcome(t *testing.T) {
	s := NewState()
	// fastest known stalemate (Sam Loyd)
	mustApply(t, s,
		"e3", "a5", "Qh5", "Ra6", "Qxa5", "h5", "Qxc7", "Rah6",
		"h4", "f6", "Qxd7+", "Kf7", "Qxb7", "Qd3", "Qxb8", "Qh7",
		"Qxc8", "Kg6", "Qe6",
	)
	res := s.Terminal()
	if res.Status != StatusStalemate {
		t.Fatalf("status = %s, want stalemate (reason %q)", res.Status, res.Reason)
	}
}

func TestResignation(t *testing.T) {
	s := NewState()
	mustApply(t, s, "e4")
	res := s.Resign(Black)
	if res.Status != StatusResigned || res.Winner != White {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !s.Terminal().Terminal() {
		t.Fatalf("game not terminal after resignation")
	}
}

func TestDrawByAgreement(t *testing.T) {
	s := NewState()
	mustApply(t, s, "e4", "e5")
	res := s.AgreeDraw()
	if res.Status != StatusDraw || res.Reason != "agreement" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestApplyUCI(t *testing.T) {
	s := NewState()
	entry, err := s.ApplyUCI("g1f3")
	if err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	if entry.SAN != "Nf3" {
		t.Fatalf("san = %q, want Nf3", entry.SAN)
	}
	if _, err := s.ApplyUCI("e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for e2e5, got %v", err)
	}
}

func TestRestoreReplaysRecord(t *testing.T) {
	orig := NewState()
	mustApply(t, orig, "e4", "e5", "Nf3")

	restored, err := Restore(orig.ID(), orig.StartedAt(), orig.Record())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.ID() != orig.ID() {
		t.Fatalf("id = %s, want %s", restored.ID(), orig.ID())
	}
	if restored.FEN() != orig.FEN() {
		t.Fatalf("fen = %s, want %s", restored.FEN(), orig.FEN())
	}
	if restored.Turn() != Black {
		t.Fatalf("turn = %s, want black", restored.Turn())
	}
	if got, want := restored.Record(), orig.Record(); len(got) != len(want) {
		t.Fatalf("record length = %d, want %d", len(got), len(want))
	} else {
		for i := range want {
			if got[i].PlayedAt != want[i].PlayedAt {
				t.Fatalf("record[%d] timestamp not preserved", i)
			}
		}
	}
}

func TestRestoreRejectsCorruptRecord(t *testing.T) {
	orig := NewState()
	mustApply(t, orig, "e4")
	record := orig.Record()
	record[0].UCI = "e2e5"

	if _, err := Restore(orig.ID(), orig.StartedAt(), record); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func mustApply(t *testing.T, s *State, sans ...string) {
	t.Helper()
	for _, san := range sans {
		if _, err := s.ApplySAN(san); err != nil {
			t.Fatalf("apply %s: %v", san, err)
		}
	}
}
