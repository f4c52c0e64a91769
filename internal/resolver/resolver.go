package resolver

import (
	"errors"
	"regexp"
	"strings"

	"github.com/park285/voicechess/internal/game"
)

var (
	// ErrUnrecognized means the text could not be mapped to any legal move.
	ErrUnrecognized = errors.New("unrecognized move phrase")
	// ErrAmbiguous means the text matched two or more legal moves.
	ErrAmbiguous = errors.New("ambiguous move phrase")
)

// Command is a non-move utterance with game-level meaning.
type Command string

const (
	CmdNone    Command = ""
	CmdResign  Command = "resign"
	CmdDraw    Command = "draw"
	CmdAccept  Command = "accept"
	CmdDecline Command = "decline"
)

// Resolution is the outcome of one parse attempt: either a command, or a
// legal move selected from the current legal-move set.
type Resolution struct {
	Command Command
	Move    game.LegalMove
}

// Resolve maps one transcription to a command or a unique legal move.
// It performs a single attempt; callers own the retry loop.
func Resolve(text string, legal []game.LegalMove) (Resolution, error) {
	norm := normalize(text)
	if norm == "" {
		return Resolution{}, ErrUnrecognized
	}

	if cmd := commandFor(norm); cmd != CmdNone {
		return Resolution{Command: cmd}, nil
	}

	// Direct SAN or UCI, e.g. "e4", "Nf3", "exd5", "e2e4", "e7e8q".
	switch matches := exactMatches(text, legal); len(matches) {
	case 0:
	case 1:
		return Resolution{Move: matches[0]}, nil
	default:
		return Resolution{}, ErrAmbiguous
	}

	return colloquialMatch(norm, legal)
}

var commandWords = map[string]Command{
	"resign":          CmdResign,
	"i resign":        CmdResign,
	"draw":            CmdDraw,
	"offer draw":      CmdDraw,
	"offer a draw":    CmdDraw,
	"i offer a draw":  CmdDraw,
	"accept":          CmdAccept,
	"i accept":        CmdAccept,
	"accept draw":     CmdAccept,
	"accept the draw": CmdAccept,
	"decline":         CmdDecline,
	"i decline":       CmdDecline,
	"no":              CmdDecline,
	"decline draw":    CmdDecline,
}

func commandFor(norm string) Command {
	if cmd, ok := commandWords[norm]; ok {
		return cmd
	}
	return CmdNone
}

// exactMatches compares the raw text against each legal move's SAN and UCI
// forms, tolerating check/mate suffixes. Piece-letter case is semantic in
// SAN (bxc4 is a pawn capture, Bxc4 a bishop's), so a case-exact hit wins
// outright; case-insensitive hits are only usable when unique.
func exactMatches(text string, legal []game.LegalMove) []game.LegalMove {
	t := strings.TrimSpace(text)
	t = strings.TrimRight(t, ".!?")
	if t == "" {
		return nil
	}
	compact := strings.ReplaceAll(t, " ", "")
	var loose []game.LegalMove
	for _, mv := range legal {
		san := strings.TrimRight(mv.SAN, "+#")
		if compact == san || compact == mv.SAN || strings.EqualFold(compact, mv.UCI) {
			return []game.LegalMove{mv}
		}
		if strings.EqualFold(compact, san) || strings.EqualFold(compact, mv.SAN) {
			loose = append(loose, mv)
		}
	}
	return loose
}

// phrase captures the attributes extracted from colloquial phrasing.
type phrase struct {
	piece     string
	dest      string
	from      string
	fromFile  string // file-only disambiguation, "rook a to b3"
	capture   bool
	promotion string
	castleK   bool
	castleQ   bool
}

var squareRe = regexp.MustCompile(`\b([a-h])\s*([1-8])\b`)

var pieceWords = map[string]string{
	"pawn":   "pawn",
	"knight": "knight",
	"night":  "knight", // common mishearing
	"horse":  "knight",
	"bishop": "bishop",
	"rook":   "rook",
	"castle": "rook", // only when not a castling phrase
	"queen":  "queen",
	"king":   "king",
}

var numberWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8",
}

// rankHomophones double as English words ("rook a to b3"), so they are only
// rewritten into ranks when no square mention follows them.
var rankHomophones = map[string]string{
	"to": "2", "too": "2", "for": "4", "ate": "8",
}

func colloquialMatch(norm string, legal []game.LegalMove) (Resolution, error) {
	p, ok := parsePhrase(norm)
	if !ok {
		return Resolution{}, ErrUnrecognized
	}

	var matched []game.LegalMove
	for _, mv := range legal {
		if matchesPhrase(p, mv) {
			matched = append(matched, mv)
		}
	}
	switch len(matched) {
	case 0:
		return Resolution{}, ErrUnrecognized
	case 1:
		return Resolution{Move: matched[0]}, nil
	default:
		return Resolution{}, ErrAmbiguous
	}
}

func parsePhrase(norm string) (phrase, bool) {
	var p phrase

	if strings.Contains(norm, "castle") || strings.Contains(norm, "castling") {
		switch {
		case strings.Contains(norm, "queen"):
			p.castleQ = true
			return p, true
		case strings.Contains(norm, "king") || strings.Contains(norm, "short"):
			p.castleK = true
			return p, true
		case strings.Contains(norm, "long"):
			p.castleQ = true
			return p, true
		case len(extractSquares(norm)) == 0:
			// bare "castle": match whichever castling is legal; two legal
			// castles then surface as an ambiguity
			p.castleK = true
			p.castleQ = true
			return p, true
		}
		// "castle <square>" falls through as a rook move
	}

	if strings.Contains(norm, "take") || strings.Contains(norm, "capture") {
		p.capture = true
	}

	words := strings.Fields(norm)
	for i, w := range words {
		name, ok := pieceWords[w]
		if !ok {
			continue
		}
		// "promote to queen" names the promotion piece, not the mover
		if i >= 2 && words[i-1] == "to" && strings.HasPrefix(words[i-2], "promot") {
			p.promotion = name
			continue
		}
		if p.piece == "" {
			p.piece = name
		} else if p.promotion == "" && (name == "queen" || name == "knight" || name == "rook" || name == "bishop") {
			p.promotion = name
		}
	}

	// "rook a to b3" or "knight f takes e5": a bare file letter right after
	// the piece word narrows the origin by file alone
	for i := 1; i < len(words); i++ {
		if !isFileLetter(words[i]) {
			continue
		}
		if _, ok := pieceWords[words[i-1]]; !ok {
			continue
		}
		if i+1 < len(words) && isRankMention(words[i+1:]) {
			continue // part of a spoken square, not a bare file
		}
		p.fromFile = words[i]
		break
	}

	squares := extractSquares(norm)
	switch len(squares) {
	case 0:
		return p, p.piece != "" && (p.capture || p.fromFile != "")
	case 1:
		p.dest = squares[0]
	default:
		p.from = squares[0]
		p.dest = squares[len(squares)-1]
	}
	return p, true
}

// isRankMention reports whether the words begin with something that combines
// with a preceding file letter into a square.
func isRankMention(words []string) bool {
	w := words[0]
	if len(w) == 1 && w >= "1" && w <= "8" {
		return true
	}
	if _, ok := numberWords[w]; ok {
		return true
	}
	if _, ok := rankHomophones[w]; ok {
		return !squareFollows(words[1:])
	}
	return false
}

// extractSquares finds square names in order, including spoken forms like
// "e four" and "a 5".
func extractSquares(norm string) []string {
	// rewrite spelled ranks so the square regexp can see them
	words := strings.Fields(norm)
	for i := 1; i < len(words); i++ {
		if !isFileLetter(words[i-1]) {
			continue
		}
		if d, ok := numberWords[words[i]]; ok {
			words[i] = d
			continue
		}
		if d, ok := rankHomophones[words[i]]; ok && !squareFollows(words[i+1:]) {
			words[i] = d
		}
	}
	rebuilt := strings.Join(words, " ")

	var out []string
	for _, m := range squareRe.FindAllStringSubmatch(rebuilt, -1) {
		out = append(out, m[1]+m[2])
	}
	return out
}

func isFileLetter(w string) bool {
	return len(w) == 1 && w >= "a" && w <= "h"
}

// squareFollows reports whether the remaining words still mention a square,
// which makes a preceding homophone the preposition rather than the rank.
func squareFollows(words []string) bool {
	for i, w := range words {
		if squareRe.MatchString(w) {
			return true
		}
		if i > 0 && isFileLetter(words[i-1]) {
			if _, ok := numberWords[w]; ok {
				return true
			}
			if _, ok := rankHomophones[w]; ok {
				return true
			}
		}
	}
	return false
}

func matchesPhrase(p phrase, mv game.LegalMove) bool {
	if p.castleK || p.castleQ {
		return (p.castleK && mv.CastleK) || (p.castleQ && mv.CastleQ)
	}
	if p.piece != "" && p.piece != mv.Piece {
		return false
	}
	if p.dest != "" && p.dest != mv.To {
		return false
	}
	if p.from != "" && p.from != mv.From {
		return false
	}
	if p.fromFile != "" && !strings.HasPrefix(mv.From, p.fromFile) {
		return false
	}
	if p.capture && !mv.Capture {
		return false
	}
	if p.promotion != "" && p.promotion != mv.Promotion {
		return false
	}
	if p.promotion == "" && mv.Promotion != "" && mv.Promotion != "queen" {
		// unspecified promotions default to the queen
		return false
	}
	return true
}

var punctRe = regexp.MustCompile(`[^a-z0-9\s]`)

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = punctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
