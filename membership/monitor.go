package membership

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vx-labs/botrace/metrics"
	"go.uber.org/zap"
)

// Monitor logs every membership event of its feed. It owns no state besides
// the subscription and the optional roster it records into.
type Monitor struct {
	logger *zap.Logger
	feed   Feed
	roster *Roster
}

func NewMonitor(logger *zap.Logger, feed Feed, roster *Roster) *Monitor {
	return &Monitor{
		logger: logger.WithOptions(zap.Fields(zap.String("emitter", "membership-monitor"))),
		feed:   feed,
		roster: roster,
	}
}

// Run consumes events until ctx is cancelled, returning nil, or until the
// subscription is lost, returning ErrSubscriptionLost.
func (m *Monitor) Run(ctx context.Context) error {
	sub, err := m.feed.Subscribe()
	if err != nil {
		return errors.Wrapf(ErrSubscriptionLost, "subscribe: %v", err)
	}
	defer sub.Close()
	m.logger.Debug("membership monitor subscribed")
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				m.logger.Error("membership subscription lost")
				return ErrSubscriptionLost
			}
			m.handle(ev)
		}
	}
}

func (m *Monitor) handle(ev Event) {
	metrics.MembershipEvents.WithLabelValues(ev.Type.String()).Inc()
	node := ev.Node
	node.Status = ev.Type.Status()
	if m.roster != nil {
		if err := m.roster.Upsert(node); err != nil {
			m.logger.Warn("failed to record member", zap.String("node_id", node.ID), zap.Error(err))
		}
	}
	fields := []zap.Field{
		zap.String("node_id", node.ID),
		zap.String("node_address", node.Address),
		zap.String("node_role", node.Role),
		zap.String("member_event", ev.Type.String()),
	}
	switch ev.Type {
	case EventMemberUp:
		m.logger.Info("member is up", fields...)
	case EventMemberRemoved:
		m.logger.Info("member removed", fields...)
	case EventUnreachable:
		m.logger.Info("member is unreachable", fields...)
	}
}
