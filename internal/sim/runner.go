package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aweeri/TLEscope/internal/tle"
)

// Action is a control verb accepted by the runner.
type Action string

const (
	ActionPause          Action = "pause"
	ActionFaster         Action = "faster"
	ActionSlower         Action = "slower"
	ActionResetSpeed     Action = "reset_speed"
	ActionResetNow       Action = "reset_now"
	ActionSelect         Action = "select"
	ActionHighlight      Action = "highlight"
	ActionHideUnselected Action = "hide_unselected"
)

// ErrUnknownAction is returned for control verbs the runner does not know.
var ErrUnknownAction = errors.New("unknown action")

// ErrStopped is returned when a command is sent to a runner that has
// stopped.
var ErrStopped = errors.New("sim runner stopped")

// ParseAction validates a control verb.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPause, ActionFaster, ActionSlower, ActionResetSpeed, ActionResetNow,
		ActionSelect, ActionHighlight, ActionHideUnselected:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Command is one control request. Name is used by select and highlight;
// Enabled sets hide_unselected explicitly, otherwise it toggles.
type Command struct {
	Action  Action
	Name    string
	Enabled *bool

	reply chan error
}

// RunnerConfig holds the sim loop settings.
type RunnerConfig struct {
	TargetFPS int // ticks per second (default: 60)
}

// DefaultTargetFPS is the default tick rate.
const DefaultTargetFPS = 60

// Runner is the only goroutine that touches a Context. It ticks at the
// target rate, applies queued commands between ticks and publishes each
// snapshot for lock-free readers.
type Runner struct {
	sim      *Context
	store    *tle.Store
	config   RunnerConfig
	logger   *slog.Logger
	commands chan Command

	snapshot atomic.Pointer[Snapshot]
	started  atomic.Bool
	done     chan struct{}

	// Track current TLE dataset for change detection.
	currentFetchedAt time.Time
}

// NewRunner creates a runner for sim. store may be nil when the roster is
// loaded once by the caller.
func NewRunner(sim *Context, store *tle.Store, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.TargetFPS <= 0 {
		config.TargetFPS = DefaultTargetFPS
	}
	return &Runner{
		sim:      sim,
		store:    store,
		config:   config,
		logger:   logger,
		commands: make(chan Command, 64),
		done:     make(chan struct{}),
	}
}

// Snapshot returns the most recently published snapshot, or nil before
// the first tick.
func (r *Runner) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Do queues cmd and waits for the runner to apply it.
func (r *Runner) Do(ctx context.Context, cmd Command) error {
	cmd.reply = make(chan error, 1)

	select {
	case r.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// Run drives the simulation until ctx is cancelled. A runner can be run
// once.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("sim runner already started")
	}
	defer close(r.done)

	interval := time.Second / time.Duration(r.config.TargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("sim runner started",
		"target_fps", r.config.TargetFPS,
		"satellites", len(r.sim.Satellites()),
		"markers", len(r.sim.Markers()),
	)

	if r.datasetChanged() {
		r.performCutover()
	}
	last := time.Now()
	r.publish(ctx, 0)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sim runner stopped")
			return nil

		case cmd := <-r.commands:
			cmd.reply <- r.apply(cmd)

		case now := <-ticker.C:
			if r.datasetChanged() {
				r.performCutover()
			}
			frame := now.Sub(last).Seconds()
			last = now
			r.publish(ctx, frame)
		}
	}
}

func (r *Runner) publish(ctx context.Context, frameSeconds float64) {
	r.snapshot.Store(r.sim.TickContext(ctx, frameSeconds))
}

// apply runs one command on the runner goroutine.
func (r *Runner) apply(cmd Command) error {
	c := r.sim
	var err error
	switch cmd.Action {
	case ActionPause:
		c.Clock.TogglePause()
	case ActionFaster:
		c.Clock.Faster()
	case ActionSlower:
		c.Clock.Slower()
	case ActionResetSpeed:
		c.Clock.ResetSpeed()
	case ActionResetNow:
		c.Clock.ResetToNow()
	case ActionSelect:
		err = c.Select(cmd.Name)
	case ActionHighlight:
		err = c.Hover(cmd.Name)
	case ActionHideUnselected:
		hide := !c.HideUnselected()
		if cmd.Enabled != nil {
			hide = *cmd.Enabled
		}
		c.SetHideUnselected(hide)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}

	if err != nil {
		r.logger.Debug("control rejected", "action", cmd.Action, "name", cmd.Name, "error", err)
		return err
	}
	r.logger.Debug("control applied",
		"action", cmd.Action,
		"name", cmd.Name,
		"multiplier", c.Clock.Multiplier,
		"paused", c.Clock.Paused,
	)
	return nil
}
