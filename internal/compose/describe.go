package compose

import (
	"fmt"
	"regexp"
	"strings"
)

var pieceLetters = map[byte]string{
	'K': "king", 'Q': "queen", 'R': "rook", 'B': "bishop", 'N': "knight",
}

var rankOrdinals = map[byte]string{
	'1': "first", '2': "second", '3': "third", '4': "fourth",
	'5': "fifth", '6': "sixth", '7': "seventh", '8': "eighth",
}

var (
	epRe      = regexp.MustCompile(`(?i)\s*\be\.?p\.?\s*`)
	checkRe   = regexp.MustCompile(`(#|\+\+|\+)([!?]*)$`)
	annotRe   = regexp.MustCompile(`[!?]+$`)
	castleRe  = regexp.MustCompile(`^(O|0)-(O|0)(-(O|0))?$`)
	sanRe     = regexp.MustCompile(`^([KQRBN])?([a-h1-8]{0,2})(x)?([a-h][1-8])(?:=([QRBN])|([QRBN]))?$`)
	anySquare = regexp.MustCompile(`[a-h][1-8]`)
)

// parsedSAN is the move decomposition shared by both description voices.
type parsedSAN struct {
	castleK   bool
	castleQ   bool
	pieceName string
	from      string // spoken disambiguation phrase, may be empty
	dest      string
	capture   bool
	enPassant bool
	promo     string
	check     string // "", "check", "double", "mate"
	landing   string // fallback square when SAN did not parse
}

// DescribeFirstPerson renders a SAN move as a future-tense sentence spoken
// by the side about to play it, e.g. "I will move my knight to f3." side
// ("white"/"black") names the king's landing square on castling and may be
// empty.
func DescribeFirstPerson(san, side string) string {
	p, ok := parseSAN(san)
	if !ok {
		if p.landing != "" {
			return fmt.Sprintf("I will make a move that will land on %s.", p.landing)
		}
		return fmt.Sprintf("I will not be able to parse the move %q.", strings.TrimSpace(san))
	}

	if p.castleK || p.castleQ {
		sideWord, file := "kingside", "g"
		if p.castleQ {
			sideWord, file = "queenside", "c"
		}
		desc := "I will castle " + sideWord
		if sq := castleSquare(file, side); sq != "" {
			desc += " to " + sq
		}
		return withCheckSuffix(desc, p.check)
	}

	var base string
	switch {
	case p.capture && p.enPassant && p.pieceName == "pawn":
		base = fmt.Sprintf("I will capture en passant on %s with my pawn%s", p.dest, p.from)
	case p.capture:
		base = fmt.Sprintf("I will capture on %s with my %s%s", p.dest, p.pieceName, p.from)
	case p.pieceName == "pawn":
		base = fmt.Sprintf("I will advance my pawn%s to %s", p.from, p.dest)
	default:
		base = fmt.Sprintf("I will move my %s%s to %s", p.pieceName, p.from, p.dest)
	}
	if p.promo != "" {
		base += fmt.Sprintf(", and I will promote to a %s", p.promo)
	}
	return withCheckSuffix(base, p.check)
}

// Describe renders a SAN move as a neutral noun phrase with no trailing
// period, suitable for embedding in prompts such as
// "Did you try to play <phrase>?".
func Describe(san string) string {
	p, ok := parseSAN(san)
	if !ok {
		if p.landing != "" {
			return "a move landing on " + p.landing
		}
		return fmt.Sprintf("the move %q", strings.TrimSpace(san))
	}

	if p.castleK || p.castleQ {
		if p.castleQ {
			return withCheckPhrase("a queenside castle", p.check)
		}
		return withCheckPhrase("a kingside castle", p.check)
	}

	var base string
	switch {
	case p.capture && p.enPassant && p.pieceName == "pawn":
		base = fmt.Sprintf("an en passant capture on %s%s", p.dest, p.from)
	case p.capture:
		base = fmt.Sprintf("a %s%s capture on %s", p.pieceName, p.from, p.dest)
	default:
		base = fmt.Sprintf("%s%s to %s", p.pieceName, p.from, p.dest)
	}
	if p.promo != "" {
		base += ", promoting to a " + p.promo
	}
	return withCheckPhrase(base, p.check)
}

func parseSAN(san string) (parsedSAN, bool) {
	var p parsedSAN
	s := strings.TrimSpace(san)

	p.enPassant = epRe.MatchString(s)
	s = strings.TrimSpace(epRe.ReplaceAllString(s, ""))

	if m := checkRe.FindStringSubmatchIndex(s); m != nil {
		switch s[m[2]:m[3]] {
		case "#":
			p.check = "mate"
		case "++":
			p.check = "double"
		default:
			p.check = "check"
		}
		s = s[:m[2]]
	}
	s = strings.TrimSpace(annotRe.ReplaceAllString(s, ""))

	if castleRe.MatchString(s) {
		if strings.Count(s, "-") == 2 {
			p.castleQ = true
		} else {
			p.castleK = true
		}
		return p, true
	}

	m := sanRe.FindStringSubmatch(s)
	if m == nil {
		p.landing = anySquare.FindString(s)
		return p, false
	}

	pieceLetter := m[1]
	disambig := m[2]
	p.capture = m[3] == "x"
	p.dest = m[4]
	promo := m[5]
	if promo == "" {
		promo = m[6]
	}
	if promo != "" {
		p.promo = pieceLetters[promo[0]]
	}

	p.pieceName = "pawn"
	if pieceLetter != "" {
		p.pieceName = pieceLetters[pieceLetter[0]]
	}

	p.from = fromPhraseFor(disambig)
	if pieceLetter == "" && p.capture && len(disambig) == 1 && disambig[0] >= 'a' && disambig[0] <= 'h' {
		p.from = fmt.Sprintf(" from the %s-file", disambig)
	}
	return p, true
}

func fromPhraseFor(disambig string) string {
	switch len(disambig) {
	case 1:
		c := disambig[0]
		if c >= 'a' && c <= 'h' {
			return fmt.Sprintf(" from the %s-file", disambig)
		}
		if ord, ok := rankOrdinals[c]; ok {
			return fmt.Sprintf(" from the %s rank", ord)
		}
	case 2:
		if disambig[0] >= 'a' && disambig[0] <= 'h' && disambig[1] >= '1' && disambig[1] <= '8' {
			return " from " + disambig
		}
	}
	return ""
}

func castleSquare(file, side string) string {
	switch strings.ToLower(side) {
	case "white", "w":
		return file + "1"
	case "black", "b":
		return file + "8"
	}
	return ""
}

func withCheckSuffix(desc, check string) string {
	switch check {
	case "mate":
		return desc + ", checkmate."
	case "double":
		return desc + ", with double check."
	case "check":
		return desc + ", with check."
	}
	return desc + "."
}

func withCheckPhrase(desc, check string) string {
	switch check {
	case "mate":
		return desc + ", checkmate"
	case "double":
		return desc + " with double check"
	case "check":
		return desc + " with check"
	}
	return desc
}
