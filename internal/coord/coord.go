// Package coord runs the turn pipeline: listen, transcribe, resolve, apply,
// compose, speak, repeat until the game ends.
package coord

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/capture"
	"github.com/park285/voicechess/internal/compose"
	"github.com/park285/voicechess/internal/game"
	"github.com/park285/voicechess/internal/msgcat"
	"github.com/park285/voicechess/internal/obslog"
	"github.com/park285/voicechess/internal/render"
	"github.com/park285/voicechess/internal/resolver"
	"github.com/park285/voicechess/internal/speech"
	"github.com/park285/voicechess/internal/store"
	"github.com/park285/voicechess/internal/transcribe"
)

// State is one stage of the turn pipeline.
type State string

const (
	StateAwaitingInput State = "AwaitingInput"
	StateResolvingMove State = "ResolvingMove"
	StateApplying      State = "Applying"
	StateComposing     State = "Composing"
	StateSpeaking      State = "Speaking"
	StateTurnComplete  State = "TurnComplete"
	StateGameOver      State = "GameOver"
	StateAborted       State = "Aborted"
)

// Mode selects who plays which side.
type Mode string

const (
	ModePvE Mode = "pve"
	ModePvP Mode = "pvp"
)

// SessionConfig is fixed at session start and never mutated.
type SessionConfig struct {
	Mode           Mode
	HumanColor     game.Color // PvE only; the engine plays the other side
	RetryBudget    int
	ListenMax      time.Duration
	SilenceTimeout time.Duration
	Commentary     bool
	CommentaryOdds float64
	DrawAcceptOdds float64 // PvE: chance the engine accepts a draw offer
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.RetryBudget <= 0 {
		c.RetryBudget = 3
	}
	if c.HumanColor == "" {
		c.HumanColor = game.White
	}
	if c.CommentaryOdds <= 0 {
		c.CommentaryOdds = 0.5
	}
	if c.DrawAcceptOdds <= 0 {
		c.DrawAcceptOdds = 0.3
	}
	return c
}

// TurnAttempt is the progress of one resolution attempt within a turn.
type TurnAttempt struct {
	Number     int
	Transcript string
	Err        error
}

// TurnResolutionError ends a turn after the retry budget is spent. The board
// is unchanged; it is not a game-ending condition.
type TurnResolutionError struct {
	Attempts int
	Last     error
}

func (e *TurnResolutionError) Error() string {
	return fmt.Sprintf("turn unresolved after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TurnResolutionError) Unwrap() error { return e.Last }

// Collaborator contracts; the concrete implementations live in their own
// packages and fakes stand in for them in tests.
type (
	Listener interface {
		Listen(ctx context.Context, maxDuration, silenceTimeout time.Duration) (capture.Clip, error)
	}
	Transcriber interface {
		Transcribe(ctx context.Context, clip capture.Clip) (string, error)
	}
	Speaker interface {
		Speak(ctx context.Context, text string) error
	}
	Engine interface {
		BestMove(ctx context.Context, fen string, moves []string) (string, error)
	}
	Commentator interface {
		Comment(ctx context.Context, position string) (string, bool)
	}
)

// Coordinator owns one session: a single game progressed one blocking stage
// at a time.
type Coordinator struct {
	cfg SessionConfig

	st          *game.State
	listener    Listener
	transcriber Transcriber
	speaker     Speaker
	engine      Engine // PvE only
	commentator Commentator
	cat         *msgcat.Catalog

	sessions *store.SessionStore // optional
	archive  store.Archive       // optional
	renderer *render.Renderer    // optional, nil-safe

	rng *rand.Rand

	state       State
	trace       []State
	pendingDraw game.Color // side that offered; empty when none
}

// Option wires optional collaborators.
type Option func(*Coordinator)

func WithEngine(e Engine) Option { return func(c *Coordinator) { c.engine = e } }

func WithCommentator(cm Commentator) Option { return func(c *Coordinator) { c.commentator = cm } }

func WithSessionStore(s *store.SessionStore) Option {
	return func(c *Coordinator) { c.sessions = s }
}

func WithArchive(a store.Archive) Option { return func(c *Coordinator) { c.archive = a } }

func WithRenderer(r *render.Renderer) Option { return func(c *Coordinator) { c.renderer = r } }

func WithRand(r *rand.Rand) Option { return func(c *Coordinator) { c.rng = r } }

func New(cfg SessionConfig, st *game.State, l Listener, t Transcriber, sp Speaker, cat *msgcat.Catalog, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:         cfg.withDefaults(),
		st:          st,
		listener:    l,
		transcriber: t,
		speaker:     sp,
		cat:         cat,
		state:       StateAwaitingInput,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

func (c *Coordinator) State() State   { return c.state }
func (c *Coordinator) Trace() []State { return c.trace }

// transition is the single place the machine moves; every state change is
// recorded and logged.
func (c *Coordinator) transition(to State) {
	obslog.L().Debug("state transition",
		zap.String("from", string(c.state)), zap.String("to", string(to)))
	c.state = to
	c.trace = append(c.trace, to)
}

// Run progresses the session until the game is over or the context is
// cancelled. The returned Result is always the final game outcome.
func (c *Coordinator) Run(ctx context.Context) (game.Result, error) {
	c.announceWelcome(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return c.abort(ctx, "interrupted"), err
		}
		if res := c.st.Terminal(); res.Terminal() {
			return c.finish(ctx, res), nil
		}

		var err error
		if c.engineToMove() {
			err = c.engineTurn(ctx)
		} else {
			err = c.RunTurn(ctx)
		}

		switch {
		case err == nil:
			// next turn
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return c.abort(ctx, "interrupted"), err
		case isDeviceError(err):
			obslog.L().Error("device failure, aborting session", zap.Error(err))
			return c.abort(ctx, "device failure"), err
		default:
			var tre *TurnResolutionError
			if errors.As(err, &tre) {
				if tre.captureOnly() {
					// nothing intelligible reached the pipeline all turn
					obslog.L().Error("no usable capture, aborting session", zap.Error(err))
					return c.abort(ctx, "capture failure"), err
				}
				// turn ends, same player retries fresh
				c.say(ctx, c.cat.Line("turn.exhausted", nil, "Let's try that turn again."))
				continue
			}
			return c.abort(ctx, "internal error"), err
		}
	}
}

// captureOnly reports whether no attempt produced a transcript.
func (e *TurnResolutionError) captureOnly() bool {
	return e.Last != nil && (errors.Is(e.Last, capture.ErrNoSpeech) || isTranscriptionError(e.Last))
}

// RunTurn executes one human turn: capture, transcribe, resolve and apply one
// move (or game command), then compose and speak the response. Attempts are
// bounded by the retry budget; exhaustion returns *TurnResolutionError and
// leaves the board untouched.
func (c *Coordinator) RunTurn(ctx context.Context) error {
	mover := c.st.Turn()
	c.transition(StateAwaitingInput)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ta := TurnAttempt{Number: attempt}

		clip, err := c.listener.Listen(ctx, c.cfg.ListenMax, c.cfg.SilenceTimeout)
		if err != nil {
			if errors.Is(err, capture.ErrDevice) {
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			ta.Err = err
			c.logAttempt(mover, ta)
			if errors.Is(err, capture.ErrNoSpeech) {
				c.say(ctx, c.cat.Line("turn.no_speech", nil, "I didn't hear anything."))
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := c.transcriber.Transcribe(ctx, clip)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			ta.Err = err
			c.logAttempt(mover, ta)
			continue
		}
		ta.Transcript = text

		// an abort raised while the request was in flight discards the
		// response; the board must stay at its last applied state
		if err := ctx.Err(); err != nil {
			return err
		}

		c.transition(StateResolvingMove)
		res, err := resolver.Resolve(text, c.st.LegalMoves())
		if err != nil {
			lastErr = err
			ta.Err = err
			c.logAttempt(mover, ta)
			c.promptParseFailure(ctx, text, err)
			c.transition(StateAwaitingInput)
			continue
		}

		if res.Command != resolver.CmdNone {
			done, handled := c.handleCommand(ctx, mover, res.Command)
			if done {
				return nil
			}
			if handled {
				// command consumed without ending the turn; listen again
				c.transition(StateAwaitingInput)
				attempt--
				continue
			}
			// accept/decline with nothing pending burns an attempt
			lastErr = fmt.Errorf("%w: no draw offer pending", resolver.ErrUnrecognized)
			ta.Err = lastErr
			c.logAttempt(mover, ta)
			c.say(ctx, c.cat.Line("draw.none_pending", nil, "There is no draw offer on the table."))
			c.transition(StateAwaitingInput)
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		c.transition(StateApplying)
		entry, err := c.st.ApplySAN(res.Move.SAN)
		if err != nil {
			// legal-move set raced or notation mismatch; treat as a failed attempt
			lastErr = err
			ta.Err = err
			c.logAttempt(mover, ta)
			c.promptParseFailure(ctx, res.Move.SAN, err)
			c.transition(StateAwaitingInput)
			continue
		}

		// moving past a standing offer declines it
		if c.pendingDraw != "" && c.pendingDraw != mover {
			c.pendingDraw = ""
		}
		c.afterApply(ctx, mover, entry, false)
		return nil
	}

	return &TurnResolutionError{Attempts: c.cfg.RetryBudget, Last: lastErr}
}

// engineTurn asks the engine for a move and applies it directly; engine
// moves are legal by construction and get no retry loop.
func (c *Coordinator) engineTurn(ctx context.Context) error {
	mover := c.st.Turn()
	c.transition(StateResolvingMove)

	best, err := c.engine.BestMove(ctx, "startpos", c.st.MovesUCI())
	if err != nil {
		return fmt.Errorf("engine move: %w", err)
	}
	// a best-move reply that raced an abort is discarded unplayed
	if err := ctx.Err(); err != nil {
		return err
	}

	c.transition(StateApplying)
	entry, err := c.st.ApplyUCI(best)
	if err != nil {
		return fmt.Errorf("apply engine move %s: %w", best, err)
	}

	c.afterApply(ctx, mover, entry, true)
	return nil
}

// afterApply runs the compose/speak tail of a turn and persists the new
// position. Speech failures never undo the applied move.
func (c *Coordinator) afterApply(ctx context.Context, mover game.Color, entry game.TurnEntry, engineMove bool) {
	c.transition(StateComposing)
	var text string
	if engineMove {
		text = compose.DescribeFirstPerson(entry.SAN, string(mover))
	} else {
		text = sentence(compose.Describe(entry.SAN))
	}

	c.transition(StateSpeaking)
	c.say(ctx, text)
	c.maybeComment(ctx)

	c.transition(StateTurnComplete)
	c.persist(ctx)
	c.renderer.Snapshot(entry.FEN, c.st.ID(), len(c.st.Record()))
}

// handleCommand deals with resign/draw/accept/decline. Returns
// (turnDone, handled): turnDone means the turn (and possibly the game) is
// over; handled=false means the command did not apply here.
func (c *Coordinator) handleCommand(ctx context.Context, mover game.Color, cmd resolver.Command) (turnDone, handled bool) {
	switch cmd {
	case resolver.CmdResign:
		c.st.Resign(mover)
		return true, true

	case resolver.CmdDraw:
		if c.cfg.Mode == ModePvE {
			if c.rng.Float64() < c.cfg.DrawAcceptOdds {
				c.st.AgreeDraw()
				return true, true
			}
			c.say(ctx, c.cat.Line("draw.engine_declined", nil, "I decline your draw offer. Let's continue."))
			return false, true
		}
		// PvP: the offer stands until the opponent answers or moves past it.
		// The offerer still has to make their move.
		c.pendingDraw = mover
		c.say(ctx, c.cat.Line("draw.offered", map[string]string{"Player": string(mover)},
			string(mover)+" offers a draw."))
		return false, true

	case resolver.CmdAccept:
		if c.pendingDraw == "" || c.pendingDraw == mover {
			return false, false
		}
		c.pendingDraw = ""
		c.say(ctx, c.cat.Line("draw.accepted", nil, "Draw offer accepted."))
		c.st.AgreeDraw()
		return true, true

	case resolver.CmdDecline:
		if c.pendingDraw == "" || c.pendingDraw == mover {
			return false, false
		}
		c.pendingDraw = ""
		c.say(ctx, c.cat.Line("draw.declined", nil, "Draw offer declined."))
		return true, true
	}
	return false, false
}

func (c *Coordinator) promptParseFailure(ctx context.Context, text string, err error) {
	switch {
	case errors.Is(err, resolver.ErrAmbiguous):
		c.say(ctx, c.cat.Line("turn.ambiguous", nil, "More than one piece can make that move."))
	case errors.Is(err, game.ErrIllegalMove):
		c.say(ctx, c.cat.Line("turn.illegal",
			map[string]string{"Description": compose.Describe(text)},
			"That isn't a legal move. Please try again."))
	default:
		c.say(ctx, c.cat.Line("turn.unrecognized", nil, "I didn't catch a move in that."))
	}
}

func (c *Coordinator) maybeComment(ctx context.Context) {
	if !c.cfg.Commentary || c.commentator == nil {
		return
	}
	if c.rng.Float64() >= c.cfg.CommentaryOdds {
		return
	}
	if comment, ok := c.commentator.Comment(ctx, c.st.PGN()); ok && comment != "" {
		c.say(ctx, comment)
	}
}

// say speaks best-effort: synthesis problems are logged, device failures are
// logged louder, and neither rolls anything back.
func (c *Coordinator) say(ctx context.Context, text string) {
	if c.speaker == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := c.speaker.Speak(ctx, text); err != nil {
		if errors.Is(err, speech.ErrDevice) {
			obslog.L().Error("playback device failed", zap.Error(err))
			return
		}
		obslog.L().Warn("speech output failed", zap.String("text", text), zap.Error(err))
	}
}

func (c *Coordinator) announceWelcome(ctx context.Context) {
	key := "welcome.pve"
	if c.cfg.Mode == ModePvP {
		key = "welcome.pvp"
	}
	c.say(ctx, c.cat.Line(key, nil, "Welcome to Voice Chess!"))
}

func (c *Coordinator) finish(ctx context.Context, res game.Result) game.Result {
	c.transition(StateGameOver)
	c.say(ctx, c.resultLine(res))
	c.archiveGame(ctx, res)
	c.dropSession(ctx)
	return res
}

func (c *Coordinator) abort(ctx context.Context, reason string) game.Result {
	c.transition(StateAborted)
	res := c.st.Terminal()
	if !res.Terminal() {
		res = c.st.Abort(reason)
	}
	c.archiveGame(ctx, res)
	c.dropSession(ctx)
	return res
}

func (c *Coordinator) resultLine(res game.Result) string {
	fallback := c.cat.Line("result.fallback", nil, "Game over!")
	if c.cfg.Mode == ModePvE {
		switch res.Status {
		case game.StatusCheckmate:
			if res.Winner == c.cfg.HumanColor {
				return c.cat.Line("result.pve.human_win", nil, fallback)
			}
			return c.cat.Line("result.pve.engine_win", nil, fallback)
		case game.StatusResigned:
			if res.Winner != c.cfg.HumanColor {
				return c.cat.Line("result.pve.human_resigned", nil, fallback)
			}
			return fallback
		case game.StatusDraw:
			if res.Reason == "agreement" {
				return c.cat.Line("result.pve.draw_agreed", nil, fallback)
			}
			return c.cat.Line("result.pve.draw", nil, fallback)
		case game.StatusStalemate:
			return c.cat.Line("result.pve.draw", nil, fallback)
		}
		return fallback
	}

	switch res.Status {
	case game.StatusCheckmate:
		if res.Winner == game.White {
			return c.cat.Line("result.pvp.white_win", nil, fallback)
		}
		return c.cat.Line("result.pvp.black_win", nil, fallback)
	case game.StatusResigned:
		if res.Winner == game.Black {
			return c.cat.Line("result.pvp.white_resigned", nil, fallback)
		}
		return c.cat.Line("result.pvp.black_resigned", nil, fallback)
	case game.StatusDraw:
		if res.Reason == "agreement" {
			return c.cat.Line("result.pvp.draw_agreed", nil, fallback)
		}
		return c.cat.Line("result.pvp.draw", nil, fallback)
	case game.StatusStalemate:
		return c.cat.Line("result.pvp.draw", nil, fallback)
	}
	return fallback
}

func (c *Coordinator) engineToMove() bool {
	return c.cfg.Mode == ModePvE && c.engine != nil && c.st.Turn() != c.cfg.HumanColor
}

func (c *Coordinator) persist(ctx context.Context) {
	if c.sessions == nil {
		return
	}
	snap := &store.Snapshot{
		GameID:    c.st.ID(),
		Mode:      string(c.cfg.Mode),
		FEN:       c.st.FEN(),
		Record:    c.st.Record(),
		StartedAt: c.st.StartedAt(),
	}
	if err := c.sessions.Save(ctx, snap); err != nil {
		obslog.L().Warn("session snapshot save failed", zap.Error(err))
	}
}

func (c *Coordinator) dropSession(ctx context.Context) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Delete(ctx, c.st.ID()); err != nil {
		obslog.L().Warn("session snapshot delete failed", zap.Error(err))
	}
}

func (c *Coordinator) archiveGame(ctx context.Context, res game.Result) {
	if c.archive == nil {
		return
	}
	now := time.Now()
	_, err := c.archive.InsertGame(ctx, &store.ArchivedGame{
		GameID:    c.st.ID(),
		Mode:      string(c.cfg.Mode),
		Result:    string(res.Status),
		Winner:    string(res.Winner),
		Reason:    res.Reason,
		MovesUCI:  c.st.MovesUCI(),
		MovesSAN:  c.st.MovesSAN(),
		PGN:       c.st.PGN(),
		StartedAt: c.st.StartedAt(),
		EndedAt:   now,
		Duration:  now.Sub(c.st.StartedAt()),
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateGame) {
		obslog.L().Warn("game archive failed", zap.Error(err))
	}
}

func (c *Coordinator) logAttempt(mover game.Color, ta TurnAttempt) {
	obslog.L().Info("turn attempt failed",
		zap.String("mover", string(mover)),
		zap.Int("attempt", ta.Number),
		zap.String("transcript", ta.Transcript),
		zap.Error(ta.Err),
	)
}

func isDeviceError(err error) bool {
	return errors.Is(err, capture.ErrDevice) || errors.Is(err, speech.ErrDevice)
}

func isTranscriptionError(err error) bool {
	return errors.Is(err, transcribe.ErrUnavailable) || errors.Is(err, transcribe.ErrEmpty)
}

// sentence turns a noun phrase into a spoken sentence.
func sentence(phrase string) string {
	if phrase == "" {
		return ""
	}
	return strings.ToUpper(phrase[:1]) + phrase[1:] + "."
}
