package game

import "time"

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the lifecycle state of a game.
type Status string

const (
	StatusOngoing   Status = "ONGOING"
	StatusCheckmate Status = "CHECKMATE"
	StatusStalemate Status = "STALEMATE"
	StatusDraw      Status = "DRAW"
	StatusResigned  Status = "RESIGNED"
	StatusAborted   Status = "ABORTED"
)

// Result describes the terminal condition of a game, if any.
type Result struct {
	Status Status
	Winner Color  // set for checkmate and resignation
	Reason string // draw reason or abort reason
}

func (r Result) Terminal() bool { return r.Status != StatusOngoing }

// TurnEntry is one applied move in the append-only turn record.
type TurnEntry struct {
	Mover    Color     `json:"mover"`
	SAN      string    `json:"san"`
	UCI      string    `json:"uci"`
	FEN      string    `json:"fen"`
	PlayedAt time.Time `json:"played_at"`
}

// LegalMove is one member of the current legal-move set, flattened to the
// attributes the resolver matches spoken phrasing against.
type LegalMove struct {
	SAN       string
	UCI       string
	Piece     string // pawn, knight, bishop, rook, queen, king
	From      string
	To        string
	Capture   bool
	Promotion string // piece name, empty when not a promotion
	CastleK   bool
	CastleQ   bool
}
