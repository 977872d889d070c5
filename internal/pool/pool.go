package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fexdroid/gamelaunchd/internal/executor"
	"github.com/fexdroid/gamelaunchd/internal/fexenv"
	"github.com/fexdroid/gamelaunchd/internal/history"
	"github.com/fexdroid/gamelaunchd/internal/library"
	"github.com/fexdroid/gamelaunchd/internal/logring"
	"github.com/fexdroid/gamelaunchd/internal/metrics"
)

const (
	defaultMaxConcurrent = 3
	aggregateLogCapacity = 300
	historyCapacity      = 100
)

// Policy selects the admission rule applied to new launches.
type Policy string

const (
	// PolicySerial admits one game at a time.
	PolicySerial Policy = "serial"
	// PolicyConcurrent admits up to MaxConcurrent games.
	PolicyConcurrent Policy = "concurrent"
)

type Config struct {
	Policy        Policy
	MaxConcurrent int // effective only under PolicyConcurrent; default 3
	FexArgs       []string
	Logger        *slog.Logger
}

// ActiveGame is one row of the externally observable active-games snapshot.
type ActiveGame struct {
	Game      library.Installation `json:"game"`
	State     string               `json:"state"`
	StartedAt time.Time            `json:"started_at"`
}

// Pool owns the set of active executors and enforces admission policy.
// The admission mutex spans every check-and-register sequence, so capacity
// and duplicate-id checks always observe a consistent snapshot.
type Pool struct {
	env    *fexenv.Provider
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*entry
	sinks  []history.Sink

	records *logring.Buffer[history.ExecutionRecord]
	logs    *logring.Buffer[string]
}

type entry struct {
	ex        *executor.Executor
	game      library.Installation
	startedAt time.Time
}

func New(env *fexenv.Provider, cfg Config) *Pool {
	if cfg.Policy == "" {
		cfg.Policy = PolicySerial
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{
		env:     env,
		cfg:     cfg,
		logger:  cfg.Logger,
		active:  make(map[string]*entry),
		records: logring.New[history.ExecutionRecord](historyCapacity),
		logs:    logring.New[string](aggregateLogCapacity),
	}
}

// SetHistorySinks configures external history sinks. Passing none clears
// the list.
func (p *Pool) SetHistorySinks(sinks ...history.Sink) {
	p.mu.Lock()
	p.sinks = append([]history.Sink(nil), sinks...)
	p.mu.Unlock()
}

// Launch admits and runs a game to completion, blocking until its outcome
// is known. Admission rejections return Error without spawning anything.
func (p *Pool) Launch(ctx context.Context, game library.Installation, extraEnv map[string]string) executor.Result {
	p.mu.Lock()
	if _, exists := p.active[game.ID]; exists {
		p.mu.Unlock()
		metrics.IncRejection("duplicate")
		p.adminLog(fmt.Sprintf("launch of %s rejected: this game is already running", game.Name))
		return executor.Error{Message: "this game is already running"}
	}
	if msg, ok := p.capacityExceeded(); ok {
		p.mu.Unlock()
		metrics.IncRejection("capacity")
		p.adminLog(fmt.Sprintf("launch of %s rejected: %s", game.Name, msg))
		return executor.Error{Message: msg}
	}

	ex := executor.New(p.env,
		executor.WithFexArgs(p.cfg.FexArgs...),
		executor.WithLogger(p.logger))
	launchedAt := time.Now()
	ex.OnLog(func(line string) {
		p.logs.Append("[" + game.Name + "] " + line)
	})
	ex.OnState(func(st executor.LaunchState) {
		if st.Terminal() {
			p.onTerminal(game, launchedAt, st)
		}
	})
	p.active[game.ID] = &entry{ex: ex, game: game, startedAt: launchedAt}
	n := len(p.active)
	p.mu.Unlock()

	metrics.IncLaunch(game.Name)
	metrics.SetActiveGames(n)
	p.adminLog(fmt.Sprintf("launching %s (id %s)", game.Name, game.ID))
	p.sendEvent(history.EventLaunch, history.ExecutionRecord{
		GameID: game.ID, GameName: game.Name, StartedAt: launchedAt,
	})

	return ex.Launch(ctx, game, extraEnv)
}

// capacityExceeded is called with the admission lock held.
func (p *Pool) capacityExceeded() (string, bool) {
	switch p.cfg.Policy {
	case PolicyConcurrent:
		if len(p.active) >= p.cfg.MaxConcurrent {
			return fmt.Sprintf("maximum concurrent games reached (%d)", p.cfg.MaxConcurrent), true
		}
	default:
		if len(p.active) >= 1 {
			return "another game is already running", true
		}
	}
	return "", false
}

// onTerminal runs once per admitted launch, on the executor's terminal
// transition. It records history, deregisters the id, and refreshes the
// active snapshot.
func (p *Pool) onTerminal(game library.Installation, launchedAt time.Time, st executor.LaunchState) {
	ended := time.Now()
	rec := history.ExecutionRecord{
		GameID:    game.ID,
		GameName:  game.Name,
		StartedAt: launchedAt,
		EndedAt:   ended,
	}
	switch s := st.(type) {
	case executor.Completed:
		rec.Duration = s.Duration
		rec.ExitCode = s.ExitCode
		rec.Success = true
		metrics.IncCompletion(game.Name)
		metrics.ObserveRunDuration(game.Name, s.Duration.Seconds())
	case executor.Failed:
		rec.Duration = ended.Sub(launchedAt)
		rec.Success = false
		rec.Error = s.Reason
		if s.HasExitCode {
			rec.ExitCode = s.ExitCode
			rec.Error = fmt.Sprintf("%s (exit %d)", s.Reason, s.ExitCode)
			metrics.IncCrash(game.Name)
			metrics.ObserveRunDuration(game.Name, rec.Duration.Seconds())
		}
	}

	p.mu.Lock()
	delete(p.active, game.ID)
	n := len(p.active)
	p.mu.Unlock()

	p.records.Append(rec)
	metrics.SetActiveGames(n)
	p.adminLog(fmt.Sprintf("%s finished: %s", game.Name, st.String()))
	p.sendEvent(history.EventResult, rec)
}

// Terminate gracefully stops the game with the given id. Returns false
// when the id is not active.
func (p *Pool) Terminate(id string) bool {
	return p.stop(id, func(ex *executor.Executor) { ex.Terminate() }, "terminate")
}

// Kill force-stops the game with the given id. Returns false when the id
// is not active.
func (p *Pool) Kill(id string) bool {
	return p.stop(id, func(ex *executor.Executor) { ex.Kill() }, "kill")
}

func (p *Pool) stop(id string, sig func(*executor.Executor), verb string) bool {
	p.mu.Lock()
	e, ok := p.active[id]
	p.mu.Unlock()
	if !ok {
		p.adminLog(fmt.Sprintf("%s requested for unknown game id %s", verb, id))
		return false
	}
	sig(e.ex)
	p.adminLog(fmt.Sprintf("%s requested for %s", verb, e.game.Name))
	// The executor's terminal transition performs the deregistration; the
	// entry disappears from the snapshot as soon as the process is reaped.
	return true
}

// Active returns the externally observable active-games snapshot.
func (p *Pool) Active() []ActiveGame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActiveGame, 0, len(p.active))
	for _, e := range p.active {
		out = append(out, ActiveGame{
			Game:      e.game,
			State:     e.ex.State().String(),
			StartedAt: e.startedAt,
		})
	}
	return out
}

// History returns the bounded execution history, oldest first.
func (p *Pool) History() []history.ExecutionRecord { return p.records.Snapshot() }

// Logs returns the aggregated log lines across all executors plus the
// pool's own administrative messages, oldest first.
func (p *Pool) Logs() []string { return p.logs.Snapshot() }

// CleanupOldLogs delegates to the runtime environment provider.
func (p *Pool) CleanupOldLogs(maxAgeDays int) (int, error) {
	return p.env.CleanupOldLogs(maxAgeDays)
}

func (p *Pool) adminLog(msg string) {
	p.logs.Append(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	p.logger.Info(msg)
}

func (p *Pool) sendEvent(typ history.EventType, rec history.ExecutionRecord) {
	p.mu.Lock()
	sinks := append([]history.Sink(nil), p.sinks...)
	p.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	evt := history.Event{Type: typ, OccurredAt: time.Now().UTC(), Record: rec}
	for _, s := range sinks {
		if err := s.Send(context.Background(), evt); err != nil {
			p.logger.Warn("history sink send failed", "type", typ, "err", err)
		}
	}
}
