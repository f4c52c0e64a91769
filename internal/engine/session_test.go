package engine

import "testing"

func TestBuildPositionCommand(t *testing.T) {
	cases := []struct {
		fen   string
		moves []string
		want  string
	}{
		{"", nil, "position startpos\n"},
		{"startpos", []string{"e2e4"}, "position startpos moves e2e4\n"},
		{"8/8/8/8/8/8/8/K6k w - - 0 1", nil, "position fen 8/8/8/8/8/8/8/K6k w - - 0 1\n"},
		{"", []string{"e2e4", "e7e5", "g1f3"}, "position startpos moves e2e4 e7e5 g1f3\n"},
	}
	for _, tc := range cases {
		if got := buildPositionCommand(tc.fen, tc.moves); got != tc.want {
			t.Errorf("buildPositionCommand(%q, %v) = %q, want %q", tc.fen, tc.moves, got, tc.want)
		}
	}
}

func TestValidateOptions(t *testing.T) {
	if err := validateOptions(Options{SkillLevel: 15}); err != nil {
		t.Fatalf("skill 15: %v", err)
	}
	if err := validateOptions(Options{SkillLevel: 21}); err == nil {
		t.Fatalf("skill 21 should be rejected")
	}
	if err := validateOptions(Options{SkillLevel: -1}); err == nil {
		t.Fatalf("skill -1 should be rejected")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{SkillLevel: 15}.withDefaults()
	if o.Threads != 1 || o.HashMB != 64 || o.MoveTime <= 0 {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}
