package membership

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSubscription struct {
	ch     chan Event
	closed chan struct{}
}

func (f *fakeSubscription) Events() <-chan Event {
	return f.ch
}
func (f *fakeSubscription) Close() {
	close(f.closed)
}

type fakeFeed struct {
	sub *fakeSubscription
	err error
}

func (f *fakeFeed) Subscribe() (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{sub: &fakeSubscription{ch: make(chan Event, 8), closed: make(chan struct{})}}
}

func TestMonitor(t *testing.T) {
	t.Run("records and logs events", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		feed := newFakeFeed()
		roster := NewRoster()
		monitor := NewMonitor(zap.New(core), feed, roster)

		feed.sub.ch <- Event{Type: EventMemberUp, Node: ClusterNode{ID: "a", Address: "10.0.0.1:3500"}}
		feed.sub.ch <- Event{Type: EventMemberUp, Node: ClusterNode{ID: "b", Address: "10.0.0.2:3500"}}
		feed.sub.ch <- Event{Type: EventUnreachable, Node: ClusterNode{ID: "a", Address: "10.0.0.1:3500"}}
		feed.sub.ch <- Event{Type: EventMemberRemoved, Node: ClusterNode{ID: "b", Address: "10.0.0.2:3500"}}
		close(feed.sub.ch)

		err := monitor.Run(context.Background())
		assert.Equal(t, ErrSubscriptionLost, err)

		a, err := roster.ByID("a")
		require.NoError(t, err)
		assert.Equal(t, StatusUnreachable, a.Status)
		b, err := roster.ByID("b")
		require.NoError(t, err)
		assert.Equal(t, StatusRemoved, b.Status)

		assert.Equal(t, 2, logs.FilterMessage("member is up").Len())
		assert.Equal(t, 1, logs.FilterMessage("member is unreachable").Len())
		removed := logs.FilterMessage("member removed").AllUntimed()
		require.Len(t, removed, 1)
		assert.Equal(t, "b", removed[0].ContextMap()["node_id"])
		assert.Equal(t, "member_removed", removed[0].ContextMap()["member_event"])
	})
	t.Run("stops on cancel", func(t *testing.T) {
		feed := newFakeFeed()
		monitor := NewMonitor(zap.NewNop(), feed, nil)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- monitor.Run(ctx)
		}()
		feed.sub.ch <- Event{Type: EventMemberUp, Node: ClusterNode{ID: "a"}}
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("monitor did not stop")
		}
		select {
		case <-feed.sub.closed:
		default:
			t.Fatal("subscription was not closed")
		}
	})
	t.Run("subscribe failure", func(t *testing.T) {
		monitor := NewMonitor(zap.NewNop(), &fakeFeed{err: ErrMeshClosed}, nil)
		err := monitor.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, ErrSubscriptionLost, errors.Cause(err))
	})
}
