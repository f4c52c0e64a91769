package capture

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
)

// ffmpegMic shells out to ffmpeg for device capture, reading s16le mono PCM
// from its stdout. One process per Listen call; Close kills it.
type ffmpegMic struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func newFFmpegMic(path, device string) (*ffmpegMic, error) {
	if path == "" {
		path = "ffmpeg"
	}
	format, input := defaultInput(device)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-i", input,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdout.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &ffmpegMic{cmd: cmd, stdout: stdout}, nil
}

func defaultInput(device string) (format, input string) {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		return "avfoundation", device
	case "windows":
		if device == "" {
			device = "audio=default"
		}
		return "dshow", device
	default:
		if device == "" {
			device = "default"
		}
		return "pulse", device
	}
}

func (m *ffmpegMic) ReadFrame(buf []byte) error {
	_, err := io.ReadFull(m.stdout, buf)
	return err
}

func (m *ffmpegMic) Close() error {
	if m.stdout != nil {
		m.stdout.Close()
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	if m.cmd != nil {
		return m.cmd.Wait()
	}
	return nil
}
