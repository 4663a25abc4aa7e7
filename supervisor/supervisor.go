package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/vx-labs/botrace/board"
	"github.com/vx-labs/botrace/membership"
	"github.com/vx-labs/botrace/metrics"
	"github.com/vx-labs/botrace/race"
	"go.uber.org/zap"
)

type Config struct {
	// Layout names a predefined layout. LayoutFile, when set, takes precedence.
	Layout     string
	LayoutFile string
	Seed       int64
	Race       race.Config
	// MonitorRestartDelay is the initial delay before restarting a failed membership monitor.
	MonitorRestartDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Layout:              board.DefaultLayout,
		Seed:                1,
		Race:                race.DefaultConfig(),
		MonitorRestartDelay: 500 * time.Millisecond,
	}
}

// Supervisor owns the board model, the race controller and the membership monitor.
type Supervisor struct {
	logger     *zap.Logger
	config     Config
	model      *board.Model
	controller *race.Controller
	monitor    *membership.Monitor
	roster     *membership.Roster

	mtx     sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func loadLayout(config Config) (*board.Layout, error) {
	if config.LayoutFile != "" {
		return board.LoadFile(config.LayoutFile)
	}
	return board.Load(config.Layout)
}

// New loads the board layout and prepares the child components. Nothing is
// running until Start is called, and nothing is built if the layout fails to load.
func New(logger *zap.Logger, config Config, feed membership.Feed) (*Supervisor, error) {
	if feed == nil {
		return nil, errors.New("a membership feed is required")
	}
	layout, err := loadLayout(config)
	if err != nil {
		return nil, err
	}
	model := board.NewModel(logger, layout, config.Seed)
	roster := membership.NewRoster()
	s := &Supervisor{
		logger:     logger.WithOptions(zap.Fields(zap.String("emitter", "supervisor"))),
		config:     config,
		model:      model,
		controller: race.New(logger, model, config.Race),
		monitor:    membership.NewMonitor(logger, feed, roster),
		roster:     roster,
	}
	s.logger.Info("board loaded",
		zap.String("layout", layout.Name),
		zap.Int("rows", layout.Rows()),
		zap.Int("cols", layout.Cols()),
		zap.Int("bots", len(layout.BotIDs())))
	return s, nil
}

// Start spawns the membership monitor and the race controller.
func (s *Supervisor) Start() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(2)
	go s.superviseMonitor(ctx)
	go func() {
		defer s.wg.Done()
		s.controller.Run()
	}()
	s.logger.Info("race supervisor started")
}

func (s *Supervisor) superviseMonitor(ctx context.Context) {
	defer s.wg.Done()
	policy := newRestartPolicy(s.config.MonitorRestartDelay)
	backoff.RetryNotify(func() error {
		started := time.Now()
		err := s.monitor.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		policy.ran(time.Since(started))
		return err
	}, backoff.WithContext(policy, ctx), func(err error, delay time.Duration) {
		metrics.MonitorRestarts.Inc()
		s.logger.Warn("restarting membership monitor",
			zap.Error(err), zap.Duration("restart_delay", delay))
	})
}

// restartPolicy is an exponential backoff that starts over once the monitor
// stayed up longer than the delay that preceded its restart.
type restartPolicy struct {
	*backoff.ExponentialBackOff
	lastDelay time.Duration
}

func newRestartPolicy(initial time.Duration) *restartPolicy {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxElapsedTime = 0
	policy.Reset()
	return &restartPolicy{ExponentialBackOff: policy}
}

func (p *restartPolicy) NextBackOff() time.Duration {
	p.lastDelay = p.ExponentialBackOff.NextBackOff()
	return p.lastDelay
}

func (p *restartPolicy) ran(uptime time.Duration) {
	if p.lastDelay > 0 && uptime > p.lastDelay {
		p.Reset()
		p.lastDelay = 0
	}
}

// Controller is the handle external callers use to drive the race.
func (s *Supervisor) Controller() race.Handle {
	return s.controller
}

func (s *Supervisor) Board() *board.Model {
	return s.model
}

func (s *Supervisor) Roster() *membership.Roster {
	return s.roster
}

func (s *Supervisor) Health() string {
	select {
	case <-s.controller.Done():
		return "critical"
	default:
		return "ok"
	}
}

// Shutdown ends the race, then waits for both children to stop.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mtx.Lock()
	started := s.started
	s.mtx.Unlock()
	if !started {
		return nil
	}
	state, err := s.controller.Ask(ctx, race.End)
	switch {
	case err == nil:
		s.logger.Info("race ended on shutdown")
	case errors.Cause(err) == race.ErrInvalidCommand:
		s.logger.Debug("race not ended on shutdown", zap.String("race_state", state.String()))
	case err == race.ErrControllerStopped:
	default:
		return errors.Wrap(err, "failed to end race")
	}
	if err := s.controller.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to stop race controller")
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("race supervisor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
