package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFPlayPlayer plays one WAV clip per invocation through an ffplay
// subprocess reading from stdin. The process exits when the clip ends, so
// the speaker is released on every path.
type FFPlayPlayer struct {
	path string
}

func NewFFPlayPlayer(path string) *FFPlayPlayer {
	if strings.TrimSpace(path) == "" {
		path = "ffplay"
	}
	return &FFPlayPlayer{path: path}
}

func (p *FFPlayPlayer) Play(ctx context.Context, wav []byte) error {
	cmd := exec.CommandContext(ctx, p.path,
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-autoexit",
		"-nodisp",
		"-i", "-",
	)
	cmd.Stdin = bytes.NewReader(wav)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffplay: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
