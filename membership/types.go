package membership

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrSubscriptionLost = errors.New("membership subscription lost")
	ErrMeshClosed       = errors.New("membership mesh is shut down")
	ErrMemberNotFound   = errors.New("member not found")
)

// Roles advertised in node metadata.
const (
	RoleBoard = "board"
	RoleCtl   = "ctl"
)

type Status int

const (
	StatusUp Status = iota
	StatusUnreachable
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusUnreachable:
		return "unreachable"
	case StatusRemoved:
		return "removed"
	}
	return "unknown"
}

type EventType int

const (
	EventMemberUp EventType = iota
	EventMemberRemoved
	EventUnreachable
)

func (e EventType) String() string {
	switch e {
	case EventMemberUp:
		return "member_up"
	case EventMemberRemoved:
		return "member_removed"
	case EventUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// Status is the node status an event leaves behind.
func (e EventType) Status() Status {
	switch e {
	case EventMemberRemoved:
		return StatusRemoved
	case EventUnreachable:
		return StatusUnreachable
	}
	return StatusUp
}

type ClusterNode struct {
	ID      string
	Address string
	Role    string
	Status  Status
}

type Event struct {
	Type EventType
	Node ClusterNode
	At   time.Time
}

// Feed is a source of membership events.
type Feed interface {
	Subscribe() (Subscription, error)
}

// Subscription delivers events until it is closed, or until the feed goes
// away, in which case the events channel is closed.
type Subscription interface {
	Events() <-chan Event
	Close()
}
