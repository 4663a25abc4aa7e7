package race

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vx-labs/botrace/board"
	"github.com/vx-labs/botrace/metrics"
	"go.uber.org/zap"
)

// Board is the part of the board model the controller drives.
type Board interface {
	Reset() error
	Advance() error
	SetState(board.RaceState) error
	Finished() bool
}

// Handle is what external callers get to talk to a running controller.
type Handle interface {
	Tell(Command) error
	Ask(context.Context, Command) (State, error)
	State() State
}

type Config struct {
	MailboxSize int
	// TickInterval is the board advance period while running. Zero disables the ticker,
	// leaving AdvanceTick as the only way to step the race.
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MailboxSize:  64,
		TickInterval: time.Second,
	}
}

type result struct {
	state State
	err   error
}

type request struct {
	command  Command
	shutdown bool
	reply    chan result
}

// Controller is the single writer of the race lifecycle. Commands are processed
// one at a time, in arrival order, by the goroutine running Run.
type Controller struct {
	logger  *zap.Logger
	board   Board
	config  Config
	mailbox chan request
	quit    chan struct{}
	state   int32
	ticker  *time.Ticker

	// senders hold gate in read mode while enqueuing, so that no command can be
	// queued behind the shutdown request once stopping is set.
	gate     sync.RWMutex
	stopping int32
}

func New(logger *zap.Logger, b Board, config Config) *Controller {
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultConfig().MailboxSize
	}
	return &Controller{
		logger:  logger.WithOptions(zap.Fields(zap.String("emitter", "race-controller"))),
		board:   b,
		config:  config,
		mailbox: make(chan request, config.MailboxSize),
		quit:    make(chan struct{}),
	}
}

// State returns the last committed race state.
func (c *Controller) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// Done is closed once the controller acknowledged shutdown.
func (c *Controller) Done() <-chan struct{} {
	return c.quit
}

// Tell enqueues cmd without waiting for it to be processed. It never blocks,
// so it is safe to call from a board observer.
func (c *Controller) Tell(cmd Command) error {
	return c.enqueue(request{command: cmd})
}

func (c *Controller) enqueue(req request) error {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if atomic.LoadInt32(&c.stopping) == 1 {
		return ErrControllerStopped
	}
	select {
	case c.mailbox <- req:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Ask enqueues cmd and waits for its outcome. It must not be called from a
// board observer, as observers run on the controller goroutine.
func (c *Controller) Ask(ctx context.Context, cmd Command) (State, error) {
	req := request{command: cmd, reply: make(chan result, 1)}
	if err := c.send(ctx, req); err != nil {
		return c.State(), err
	}
	select {
	case res := <-req.reply:
		return res.state, res.err
	case <-c.quit:
		select {
		case res := <-req.reply:
			return res.state, res.err
		default:
			return c.State(), ErrControllerStopped
		}
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *Controller) send(ctx context.Context, req request) error {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if atomic.LoadInt32(&c.stopping) == 1 {
		return ErrControllerStopped
	}
	select {
	case c.mailbox <- req:
		return nil
	case <-c.quit:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the controller to stop once the commands queued before it are
// processed, and waits for it to do so. Commands sent after Shutdown was called
// are refused with ErrControllerStopped.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.gate.Lock()
	first := atomic.CompareAndSwapInt32(&c.stopping, 0, 1)
	c.gate.Unlock()
	if first {
		select {
		case c.mailbox <- request{shutdown: true}:
		case <-c.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-c.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the mailbox until Shutdown is acknowledged.
func (c *Controller) Run() {
	defer close(c.quit)
	c.logger.Info("race controller started", zap.Duration("tick_interval", c.config.TickInterval))
	for {
		select {
		case req := <-c.mailbox:
			if req.shutdown {
				c.disarm()
				c.drain()
				c.logger.Info("race controller stopped", zap.String("race_state", c.State().String()))
				return
			}
			state, err := c.handle(req.command)
			if req.reply != nil {
				req.reply <- result{state: state, err: err}
			}
		case <-c.tick():
			if c.State() != Running {
				continue
			}
			if err := c.step(); err != nil {
				c.logger.Error("failed to advance board", zap.Error(err))
			}
		}
	}
}

// drain refuses whatever is still queued behind the shutdown request.
func (c *Controller) drain() {
	for {
		select {
		case req := <-c.mailbox:
			if req.shutdown {
				continue
			}
			metrics.RaceCommands.WithLabelValues(req.command.String(), "dropped").Inc()
			c.logger.Warn("dropping command queued after shutdown",
				zap.String("command", req.command.String()),
				zap.String("race_state", c.State().String()))
			if req.reply != nil {
				req.reply <- result{state: c.State(), err: ErrControllerStopped}
			}
		default:
			return
		}
	}
}

func (c *Controller) handle(cmd Command) (State, error) {
	from := c.State()
	to, ok := Transition(from, cmd)
	if !ok {
		metrics.RaceCommands.WithLabelValues(cmd.String(), "rejected").Inc()
		c.logger.Warn("invalid command",
			zap.String("command", cmd.String()),
			zap.String("race_state", from.String()))
		return from, &InvalidCommandError{Command: cmd, State: from}
	}
	if err := c.apply(cmd, to); err != nil {
		metrics.RaceCommands.WithLabelValues(cmd.String(), "failed").Inc()
		c.logger.Error("failed to apply command",
			zap.String("command", cmd.String()),
			zap.String("race_state", from.String()),
			zap.Error(err))
		return c.State(), err
	}
	metrics.RaceCommands.WithLabelValues(cmd.String(), "accepted").Inc()
	return c.State(), nil
}

func (c *Controller) apply(cmd Command, to State) error {
	switch cmd {
	case StartRace:
		if err := c.board.Reset(); err != nil {
			return err
		}
		if err := c.commit(to); err != nil {
			return err
		}
		c.arm()
		return c.step()
	case Pause:
		c.disarm()
		return c.commit(to)
	case Resume:
		if err := c.commit(to); err != nil {
			return err
		}
		if !c.board.Finished() {
			c.arm()
		}
		return nil
	case End:
		c.disarm()
		return c.commit(to)
	case AdvanceTick:
		return c.step()
	}
	return nil
}

// step advances the board, and stops the ticker once every bot is home. The race
// stays Running until End is received.
func (c *Controller) step() error {
	if err := c.board.Advance(); err != nil {
		return err
	}
	if c.ticker != nil && c.board.Finished() {
		c.disarm()
		c.logger.Info("every bot reached a goal, ticker stopped")
	}
	return nil
}

func (c *Controller) commit(to State) error {
	from := c.State()
	if from == to {
		return nil
	}
	if err := c.board.SetState(to); err != nil {
		return err
	}
	atomic.StoreInt32(&c.state, int32(to))
	metrics.RaceState.Set(float64(to))
	c.logger.Info("race state changed",
		zap.String("from_state", from.String()),
		zap.String("to_state", to.String()))
	return nil
}

func (c *Controller) arm() {
	if c.config.TickInterval <= 0 || c.ticker != nil {
		return
	}
	c.ticker = time.NewTicker(c.config.TickInterval)
}

func (c *Controller) disarm() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
}

func (c *Controller) tick() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C
}
