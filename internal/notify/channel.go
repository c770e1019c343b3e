// Package notify keeps a push subscription for the viewed project and turns
// its events into reconciles and transient notices.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/logging"
	"github.com/orchidnexus/orchid/internal/metrics"
	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Reconciler refreshes the tree of one project; requests for a project that
// is no longer active are dropped by the implementation.
type Reconciler interface {
	ReconcileProject(ctx context.Context, projectID int) (domain.Project, error)
}

// NoticeSink records notices beyond their time on the board.
type NoticeSink interface {
	AppendNotice(ctx context.Context, n domain.Notice) error
}

type Deps struct {
	Subscriber Subscriber
	Reconciler Reconciler
	Board      *Board
	Sink       NoticeSink
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	// OnDisconnect, if set, runs once when the subscription ends for any
	// reason other than Close. It runs on the channel's goroutine and must
	// not call Close.
	OnDisconnect func(err error)
}

// Channel is a push subscription bound to a single project. It moves from
// Open to Closed exactly once and is never reopened; a new project gets a
// new Channel.
type Channel struct {
	projectID int
	deps      Deps
	sub       Subscription
	logger    *zap.Logger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state State
}

// Open subscribes to projectID's events and starts dispatching them.
func Open(ctx context.Context, projectID int, deps Deps) (*Channel, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard()
	}
	logger := logging.OrNop(deps.Logger).With(zap.Int("project_id", projectID))

	sub, err := deps.Subscriber.Subscribe(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		projectID: projectID,
		deps:      deps,
		sub:       sub,
		logger:    logger,
		metrics:   deps.Metrics,
		state:     StateOpen,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.metrics.PushChannelOpen.Set(1)
	logger.Debug("push channel open")

	c.wg.Add(1)
	go c.loop()
	return c, nil
}

func (c *Channel) ProjectID() int { return c.projectID }

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) loop() {
	defer c.wg.Done()
	for {
		ev, err := c.sub.Recv(c.ctx)
		if err != nil {
			c.ended(err)
			return
		}
		c.metrics.PushEvents.WithLabelValues(ev.Type).Inc()
		if ev.Type != TypeNotification {
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch shows the notice first, then reconciles. Reconciles run off the
// read loop; overlapping ones share a single fetch in the tree.
func (c *Channel) dispatch(ev Event) {
	var n domain.Notice
	if c.deps.Board != nil {
		n = c.deps.Board.Show(c.projectID, ev.Message)
	} else {
		n = domain.Notice{ProjectID: c.projectID, Message: ev.Message}
	}
	if c.deps.Sink != nil {
		if err := c.deps.Sink.AppendNotice(c.ctx, n); err != nil {
			c.logger.Warn("recording notice failed", zap.Error(err))
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, err := c.deps.Reconciler.ReconcileProject(c.ctx, c.projectID)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug("push-triggered reconcile did not apply", zap.Error(err))
		}
	}()
}

// ended handles the read loop stopping. Unless Close caused it, the
// channel stays Closed; nothing reconnects.
func (c *Channel) ended(err error) {
	c.mu.Lock()
	wasOpen := c.state == StateOpen
	c.state = StateClosed
	c.mu.Unlock()

	if !wasOpen || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return
	}
	c.metrics.PushChannelOpen.Set(0)
	c.logger.Warn("push channel lost", zap.Error(err))
	_ = c.sub.Close()
	if c.deps.OnDisconnect != nil {
		c.deps.OnDisconnect(err)
	}
}

// Stop ends the subscription without waiting for in-flight dispatches, so
// it may be called from code the channel itself is running. It is safe to
// call more than once.
func (c *Channel) Stop() error {
	c.mu.Lock()
	wasOpen := c.state == StateOpen
	c.state = StateClosed
	c.mu.Unlock()

	c.cancel()
	if !wasOpen {
		return nil
	}
	err := c.sub.Close()
	c.metrics.PushChannelOpen.Set(0)
	c.logger.Debug("push channel closed")
	return err
}

// Close stops the channel and waits for in-flight dispatches.
func (c *Channel) Close() error {
	err := c.Stop()
	c.wg.Wait()
	return err
}
