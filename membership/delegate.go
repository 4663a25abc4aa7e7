package membership

import (
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// NotifyJoin is called if a peer joins the cluster.
func (m *Mesh) NotifyJoin(n *memberlist.Node) {
	m.logger.Debug("node joined", zap.String("new_node_id", n.Name))
	m.publish(Event{Type: EventMemberUp, Node: clusterNode(n, StatusUp), At: time.Now()})
}

// NotifyLeave is called if a peer leaves the cluster, or is declared dead.
func (m *Mesh) NotifyLeave(n *memberlist.Node) {
	m.logger.Debug("node left", zap.String("left_node_id", n.Name))
	kind := EventMemberRemoved
	if n.State == memberlist.StateDead || n.State == memberlist.StateSuspect {
		kind = EventUnreachable
	}
	m.publish(Event{Type: kind, Node: clusterNode(n, kind.Status()), At: time.Now()})
}

// NotifyUpdate is called if a cluster peer gets updated.
func (m *Mesh) NotifyUpdate(n *memberlist.Node) {
	m.logger.Debug("node updated", zap.String("updated_node_id", n.Name))
}

func (m *Mesh) NodeMeta(limit int) []byte {
	meta := []byte(m.role)
	if len(meta) > limit {
		return meta[:limit]
	}
	return meta
}

// NotifyMsg hands a control message to the registered handler. buf is owned by memberlist.
func (m *Mesh) NotifyMsg(buf []byte) {
	m.mtx.Lock()
	handler := m.onMessage
	m.mtx.Unlock()
	if handler == nil {
		m.logger.Debug("dropped control message: no handler registered")
		return
	}
	payload := make([]byte, len(buf))
	copy(payload, buf)
	handler(payload)
}

func (m *Mesh) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}
func (m *Mesh) LocalState(join bool) []byte {
	return nil
}
func (m *Mesh) MergeRemoteState(buf []byte, join bool) {
}
