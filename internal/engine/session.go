// Package engine drives a UCI chess engine subprocess for the computer side
// of a game.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/obslog"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
)

// ErrNoBestMove means the engine returned without a playable move,
// which only happens on already-terminal positions.
var ErrNoBestMove = errors.New("engine returned no move")

type Options struct {
	Threads    int
	SkillLevel int
	HashMB     int
	MoveTime   time.Duration
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 64
	}
	if o.MoveTime <= 0 {
		o.MoveTime = time.Second
	}
	return o
}

func validateOptions(opt Options) error {
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	return nil
}

// Session owns one engine subprocess. Search calls are serialized; the
// session survives for the whole game and is closed by the coordinator.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	opt    Options
	mu     sync.Mutex
	search sync.Mutex
}

func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	opt = opt.withDefaults()

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
		opt:    opt,
	}
	if err := s.initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// BestMove searches the position given by fen plus the moves played since,
// and returns the engine's choice in UCI notation.
func (s *Session) BestMove(ctx context.Context, fen string, moves []string) (string, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(buildPositionCommand(fen, moves)); err != nil {
		return "", fmt.Errorf("send position: %w", err)
	}
	moveTimeMS := int(s.opt.MoveTime / time.Millisecond)
	if err := s.send("go movetime " + strconv.Itoa(moveTimeMS) + "\n"); err != nil {
		return "", fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opt.MoveTime+5*time.Second)
	defer cancel()

	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			obslog.L().Error("engine read failed", zap.Strings("moves", moves), zap.Error(err))
			return "", fmt.Errorf("read line: %w", err)
		}
		if !strings.HasPrefix(line, "bestmove") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[1] == "(none)" {
			return "", ErrNoBestMove
		}
		return parts[1], nil
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		obslog.L().Warn("engine ready retry after ucinewgame",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.applyOptions(); err != nil {
		return err
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions() error {
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", s.opt.Threads),
		fmt.Sprintf("setoption name Hash value %d\n", s.opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d\n", s.opt.SkillLevel),
		"setoption name Move Overhead value 100\n",
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
