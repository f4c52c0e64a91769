package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
)

var ErrIllegalMove = errors.New("illegal chess move")

// State owns the board for one session. All mutation goes through Apply,
// Resign, AgreeDraw and Abort; callers never see a partially applied move.
type State struct {
	mu        sync.Mutex
	id        string
	game      *nchess.Game
	record    []TurnEntry
	startedAt time.Time
	override  *Result // resignation/abort, which the rules engine does not track for us
}

func NewState() *State {
	return &State{
		id:        fmt.Sprintf("game-%s", uuid.NewString()),
		game:      nchess.NewGame(),
		startedAt: time.Now(),
	}
}

// Restore rebuilds a state from a stored turn record by replaying every move.
// The stored entries are kept verbatim so timestamps survive a resume.
func Restore(id string, startedAt time.Time, record []TurnEntry) (*State, error) {
	s := &State{
		id:        id,
		game:      nchess.NewGame(),
		startedAt: startedAt,
	}
	for i, entry := range record {
		if _, err := s.ApplyUCI(entry.UCI); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, entry.UCI, err)
		}
	}
	s.record = append([]TurnEntry(nil), record...)
	return s, nil
}

func (s *State) ID() string { return s.id }

func (s *State) StartedAt() time.Time { return s.startedAt }

// Turn returns the side to move.
func (s *State) Turn() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return colorFrom(s.game.Position().Turn())
}

func (s *State) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.FEN()
}

// PGN renders the full game in portable game notation.
func (s *State) PGN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.String()
}

// Record returns a copy of the append-only turn record.
func (s *State) Record() []TurnEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TurnEntry(nil), s.record...)
}

// MovesUCI returns the move history in UCI notation, oldest first.
func (s *State) MovesUCI() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.record))
	for _, e := range s.record {
		out = append(out, e.UCI)
	}
	return out
}

// MovesSAN returns the move history in standard algebraic notation.
func (s *State) MovesSAN() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.record))
	for _, e := range s.record {
		out = append(out, e.SAN)
	}
	return out
}

// LegalMoves enumerates the legal-move set for the side to move.
func (s *State) LegalMoves() []LegalMove {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legalMovesLocked()
}

func (s *State) legalMovesLocked() []LegalMove {
	pos := s.game.Position()
	valid := s.game.ValidMoves()
	out := make([]LegalMove, 0, len(valid))
	san := nchess.AlgebraicNotation{}
	for i := range valid {
		mv := &valid[i]
		lm := LegalMove{
			SAN:     san.Encode(pos, mv),
			UCI:     mv.String(),
			From:    mv.S1().String(),
			To:      mv.S2().String(),
			Capture: mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
			CastleK: mv.HasTag(nchess.KingSideCastle),
			CastleQ: mv.HasTag(nchess.QueenSideCastle),
		}
		lm.Piece = pieceName(pos.Board().Piece(mv.S1()).Type())
		if p := mv.Promo(); p != nchess.NoPieceType {
			lm.Promotion = pieceName(p)
		}
		out = append(out, lm)
	}
	return out
}

// ApplySAN validates the move against the current legal-move set and applies
// it. On failure the board and record are untouched.
func (s *State) ApplySAN(san string) (TurnEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	san = strings.TrimSpace(san)
	if san == "" {
		return TurnEntry{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	if s.terminalLocked().Terminal() {
		return TurnEntry{}, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}

	mover := colorFrom(s.game.Position().Turn())
	pos := s.game.Position()
	if err := s.game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil); err != nil {
		return TurnEntry{}, fmt.Errorf("%w: %s", ErrIllegalMove, san)
	}

	moves := s.game.Moves()
	last := moves[len(moves)-1]
	entry := TurnEntry{
		Mover:    mover,
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, last),
		UCI:      last.String(),
		FEN:      s.game.FEN(),
		PlayedAt: time.Now(),
	}
	s.record = append(s.record, entry)
	return entry, nil
}

// ApplyUCI applies a move given in UCI notation (engine moves arrive this
// way). Same atomicity contract as ApplySAN.
func (s *State) ApplyUCI(uci string) (TurnEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uci = strings.ToLower(strings.TrimSpace(uci))
	if uci == "" {
		return TurnEntry{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	if s.terminalLocked().Terminal() {
		return TurnEntry{}, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}

	mover := colorFrom(s.game.Position().Turn())
	pos := s.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return TurnEntry{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	if err := s.game.Move(mv, nil); err != nil {
		return TurnEntry{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}

	entry := TurnEntry{
		Mover:    mover,
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, mv),
		UCI:      uci,
		FEN:      s.game.FEN(),
		PlayedAt: time.Now(),
	}
	s.record = append(s.record, entry)
	return entry, nil
}

// Resign ends the game in favor of the opponent.
func (s *State) Resign(c Color) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game.Resign(nchessColor(c))
	s.override = &Result{Status: StatusResigned, Winner: c.Other()}
	return *s.override
}

// AgreeDraw ends the game as a draw by agreement.
func (s *State) AgreeDraw() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.game.Draw(nchess.DrawOffer)
	s.override = &Result{Status: StatusDraw, Reason: "agreement"}
	return *s.override
}

// Abort marks the game abandoned without a winner.
func (s *State) Abort(reason string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == nil || !s.override.Terminal() {
		s.override = &Result{Status: StatusAborted, Reason: reason}
	}
	return *s.override
}

// Terminal reports whether the game has ended and how.
func (s *State) Terminal() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminalLocked()
}

func (s *State) terminalLocked() Result {
	if s.override != nil {
		return *s.override
	}
	switch s.game.Outcome() {
	case nchess.WhiteWon:
		return resultFor(s.game.Method(), White)
	case nchess.BlackWon:
		return resultFor(s.game.Method(), Black)
	case nchess.Draw:
		return Result{Status: drawStatus(s.game.Method()), Reason: drawReason(s.game.Method())}
	default:
		return Result{Status: StatusOngoing}
	}
}

func resultFor(method nchess.Method, winner Color) Result {
	if method == nchess.Checkmate {
		return Result{Status: StatusCheckmate, Winner: winner}
	}
	return Result{Status: StatusResigned, Winner: winner}
}

func drawStatus(method nchess.Method) Status {
	if method == nchess.Stalemate {
		return StatusStalemate
	}
	return StatusDraw
}

func drawReason(method nchess.Method) string {
	switch method {
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return "repetition"
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return "fifty-move rule"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.DrawOffer:
		return "agreement"
	default:
		return strings.ToLower(method.String())
	}
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

func nchessColor(c Color) nchess.Color {
	if c == White {
		return nchess.White
	}
	return nchess.Black
}

func pieceName(t nchess.PieceType) string {
	switch t {
	case nchess.Pawn:
		return "pawn"
	case nchess.Knight:
		return "knight"
	case nchess.Bishop:
		return "bishop"
	case nchess.Rook:
		return "rook"
	case nchess.Queen:
		return "queen"
	case nchess.King:
		return "king"
	default:
		return ""
	}
}
