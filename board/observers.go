package board

import (
	"encoding/binary"
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Listener is notified synchronously after every board mutation.
type Listener interface {
	BoardUpdated()
}

type ListenerFunc func()

func (f ListenerFunc) BoardUpdated() {
	f()
}

type CancelFunc func()

// registry keeps listeners in a radix tree keyed by their big-endian
// registration sequence, so a walk yields them in registration order.
type registry struct {
	seq   uint64
	state atomic.Pointer[iradix.Tree]
}

type registration struct {
	id       uint64
	listener Listener
}

func newRegistry() *registry {
	r := &registry{}
	r.state.Store(iradix.New())
	return r
}

func key(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func (r *registry) add(l Listener) CancelFunc {
	id := atomic.AddUint64(&r.seq, 1)
	k := key(id)
	for {
		old := r.state.Load()
		updated, _, _ := old.Insert(k, &registration{id: id, listener: l})
		if r.state.CompareAndSwap(old, updated) {
			break
		}
	}
	return func() {
		for {
			old := r.state.Load()
			updated, _, ok := old.Delete(k)
			if !ok || r.state.CompareAndSwap(old, updated) {
				return
			}
		}
	}
}

func (r *registry) len() int {
	return r.state.Load().Len()
}

func (r *registry) walk(f func(reg *registration)) {
	r.state.Load().Root().Walk(func(k []byte, v interface{}) bool {
		f(v.(*registration))
		return false
	})
}
