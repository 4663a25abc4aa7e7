package membership

import (
	"context"
	"io/ioutil"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/memberlist"
	"github.com/pkg/errors"
	"github.com/vx-labs/botrace/metrics"
	"go.uber.org/zap"
)

const subscriptionBuffer = 32

type MeshConfig struct {
	ID            string
	Role          string
	BindAddress   string
	BindPort      int
	AdvertiseAddr string
	AdvertisePort int
}

// Mesh is a memberlist node. It fans membership events out to subscribers and
// carries control messages addressed to this node.
type Mesh struct {
	id        string
	role      string
	mlist     *memberlist.Memberlist
	logger    *zap.Logger
	mtx       sync.Mutex
	closed    bool
	seq       uint64
	subs      map[uint64]*subscription
	onMessage func([]byte)
}

type subscription struct {
	id   uint64
	mesh *Mesh
	ch   chan Event
}

func (s *subscription) Events() <-chan Event {
	return s.ch
}
func (s *subscription) Close() {
	s.mesh.unsubscribe(s.id)
}

func newMesh(id, role string, logger *zap.Logger) *Mesh {
	return &Mesh{
		id:     id,
		role:   role,
		logger: logger.WithOptions(zap.Fields(zap.String("emitter", "mesh"))),
		subs:   map[uint64]*subscription{},
	}
}

func NewMesh(logger *zap.Logger, config MeshConfig) (*Mesh, error) {
	self := newMesh(config.ID, config.Role, logger)

	mconfig := memberlist.DefaultLANConfig()
	mconfig.Name = config.ID
	mconfig.BindAddr = config.BindAddress
	mconfig.BindPort = config.BindPort
	mconfig.AdvertiseAddr = config.AdvertiseAddr
	mconfig.AdvertisePort = config.AdvertisePort
	mconfig.Delegate = self
	mconfig.Events = self
	if os.Getenv("ENABLE_MEMBERLIST_LOG") != "true" {
		mconfig.LogOutput = ioutil.Discard
	}
	list, err := memberlist.Create(mconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memberlist")
	}
	self.mlist = list
	return self, nil
}

func (m *Mesh) ID() string {
	return m.id
}

// Subscribe registers a new event subscriber.
func (m *Mesh) Subscribe() (Subscription, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return nil, ErrMeshClosed
	}
	m.seq++
	sub := &subscription{id: m.seq, mesh: m, ch: make(chan Event, subscriptionBuffer)}
	m.subs[sub.id] = sub
	return sub, nil
}

func (m *Mesh) unsubscribe(id uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return
	}
	delete(m.subs, id)
	close(sub.ch)
}

// publish never blocks: memberlist calls us from its own goroutines.
func (m *Mesh) publish(ev Event) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, sub := range m.subs {
		select {
		case sub.ch <- ev:
		default:
			metrics.MembershipDropped.Inc()
			m.logger.Warn("dropped membership event for slow subscriber",
				zap.Uint64("subscription_id", sub.id),
				zap.String("member_event", ev.Type.String()),
				zap.String("node_id", ev.Node.ID))
		}
	}
}

// OnMessage sets the handler for control messages sent to this node.
func (m *Mesh) OnMessage(f func(payload []byte)) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.onMessage = f
}

func clusterNode(n *memberlist.Node, status Status) ClusterNode {
	return ClusterNode{
		ID:      n.Name,
		Address: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))),
		Role:    string(n.Meta),
		Status:  status,
	}
}

// Members lists the alive members, this node included.
func (m *Mesh) Members() []ClusterNode {
	members := m.mlist.Members()
	out := make([]ClusterNode, 0, len(members))
	for _, n := range members {
		out = append(out, clusterNode(n, StatusUp))
	}
	return out
}

func (m *Mesh) MemberCount() int {
	if m.mlist == nil {
		return 1
	}
	return m.mlist.NumMembers()
}

func (m *Mesh) Health() string {
	if m.MemberCount() == 1 {
		return "warning"
	}
	return "ok"
}

// Join contacts the given hosts, retrying until one of them answers.
func (m *Mesh) Join(ctx context.Context, hosts []string) error {
	if len(hosts) == 0 {
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 10), ctx)
	return backoff.Retry(func() error {
		count, err := m.mlist.Join(hosts)
		if err != nil {
			if count == 0 {
				m.logger.Debug("failed to join membership cluster", zap.Error(err))
				return err
			}
			m.logger.Warn("failed to join some hosts", zap.Error(err))
		}
		m.logger.Info("membership cluster joined", zap.Int("contacted_hosts", count))
		return nil
	}, policy)
}

// SendCommand delivers payload to every other alive member advertising role.
func (m *Mesh) SendCommand(role string, payload []byte) (int, error) {
	sent := 0
	for _, n := range m.mlist.Members() {
		if n.Name == m.id || string(n.Meta) != role {
			continue
		}
		if err := m.mlist.SendReliable(n, payload); err != nil {
			return sent, errors.Wrapf(err, "failed to send message to %s", n.Name)
		}
		sent++
	}
	if sent == 0 {
		return 0, errors.Wrapf(ErrMemberNotFound, "no member with role %q", role)
	}
	return sent, nil
}

// Shutdown leaves the cluster and closes every subscription.
func (m *Mesh) Shutdown() error {
	m.mtx.Lock()
	if m.closed {
		m.mtx.Unlock()
		return nil
	}
	m.closed = true
	for id, sub := range m.subs {
		delete(m.subs, id)
		close(sub.ch)
	}
	m.mtx.Unlock()
	if m.mlist == nil {
		return nil
	}
	err := m.mlist.Leave(5 * time.Second)
	if err != nil {
		m.logger.Warn("failed to leave cluster", zap.Error(err))
	}
	return m.mlist.Shutdown()
}
