package compose

import "testing"

func TestDescribeFirstPerson(t *testing.T) {
	cases := []struct {
		san  string
		side string
		want string
	}{
		{"Nf3", "", "I will move my knight to f3."},
		{"e4", "", "I will advance my pawn to e4."},
		{"exd5", "", "I will capture on d5 with my pawn from the e-file."},
		{"Qxe5+", "", "I will capture on e5 with my queen, with check."},
		{"Nbd2", "", "I will move my knight from the b-file to d2."},
		{"R1e2", "", "I will move my rook from the first rank to e2."},
		{"O-O", "white", "I will castle kingside to g1."},
		{"O-O-O", "black", "I will castle queenside to c8."},
		{"0-0", "", "I will castle kingside."},
		{"e8=Q#", "", "I will advance my pawn to e8, and I will promote to a queen, checkmate."},
		{"axb8=Q+", "", "I will capture on b8 with my pawn from the a-file, and I will promote to a queen, with check."},
		{"exd6 e.p.", "", "I will capture en passant on d6 with my pawn from the e-file."},
		{"Qh4#", "", "I will move my queen to h4, checkmate."},
		{"Rxe8++", "", "I will capture on e8 with my rook, with double check."},
		{"Nf3!?", "", "I will move my knight to f3."},
	}
	for _, tc := range cases {
		if got := DescribeFirstPerson(tc.san, tc.side); got != tc.want {
			t.Errorf("DescribeFirstPerson(%q, %q) = %q, want %q", tc.san, tc.side, got, tc.want)
		}
	}
}

func TestDescribeFirstPersonUnparseable(t *testing.T) {
	if got := DescribeFirstPerson("??e5??x", ""); got != "I will make a move that will land on e5." {
		t.Errorf("fallback = %q", got)
	}
	got := DescribeFirstPerson("gibberish", "")
	if got != `I will not be able to parse the move "gibberish".` {
		t.Errorf("unparseable = %q", got)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		san  string
		want string
	}{
		{"e4", "pawn to e4"},
		{"Nf3", "knight to f3"},
		{"exd5", "a pawn from the e-file capture on d5"},
		{"Qxe5+", "a queen capture on e5 with check"},
		{"O-O", "a kingside castle"},
		{"O-O-O", "a queenside castle"},
		{"e8=Q", "pawn to e8, promoting to a queen"},
		{"Qh4#", "queen to h4, checkmate"},
	}
	for _, tc := range cases {
		if got := Describe(tc.san); got != tc.want {
			t.Errorf("Describe(%q) = %q, want %q", tc.san, got, tc.want)
		}
	}
}

func TestExtractAnswer(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"<answer>Solid opening play.</answer>", "Solid opening play."},
		{"I think white is better here.\n</think>\n<answer>White stands better.</answer>", "White stands better."},
		{"<ANSWER> tags vary in case </ANSWER>", "tags vary in case"},
		{"no tags at all", ""},
		{"reasoning with <answer>early</answer> text\n</think>\nafter", ""},
	}
	for _, tc := range cases {
		if got := extractAnswer(tc.raw); got != tc.want {
			t.Errorf("extractAnswer(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
