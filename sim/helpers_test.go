package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/motesim/sim/config"
)

type countingUnit struct {
	ticks atomic.Int64

	lock  sync.Mutex
	times []int64

	// failAt makes Tick fail on the given tick count (1-based).
	failAt  int64
	panicAt int64

	// block, if set, is waited on in every Tick.
	block chan struct{}
}

var errUnitFailed = errors.New("unit failed")

func (u *countingUnit) Tick(_ context.Context, now int64) error {
	n := u.ticks.Add(1)

	u.lock.Lock()
	u.times = append(u.times, now)
	u.lock.Unlock()

	if u.block != nil {
		<-u.block
	}

	if u.panicAt > 0 && n == u.panicAt {
		panic("unit exploded")
	}

	if u.failAt > 0 && n == u.failAt {
		return errUnitFailed
	}

	return nil
}

func (u *countingUnit) Times() []int64 {
	u.lock.Lock()
	defer u.lock.Unlock()

	times := make([]int64, len(u.times))
	copy(times, u.times)

	return times
}

func (u *countingUnit) Config() []*config.Node {
	return []*config.Node{config.NewIntNode("ticks", u.ticks.Load())}
}

func (u *countingUnit) RestoreConfig(_ *Engine, children []*config.Node) error {
	for _, c := range children {
		if c.Name != "ticks" {
			continue
		}

		v, err := c.Int()
		if err != nil {
			return err
		}

		u.ticks.Store(v)
	}

	return nil
}

type recordingMedium struct {
	lock  sync.Mutex
	units []Unit
	name  string
}

func (m *recordingMedium) RegisterUnit(u Unit) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.units = append(m.units, u)
}

func (m *recordingMedium) UnregisterUnit(u Unit) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i, registered := range m.units {
		if registered == u {
			m.units = append(m.units[:i], m.units[i+1:]...)
			return
		}
	}
}

func (m *recordingMedium) Units() []Unit {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]Unit(nil), m.units...)
}

func (m *recordingMedium) Config() []*config.Node {
	return []*config.Node{config.NewNode("name", m.name)}
}

func (m *recordingMedium) RestoreConfig(_ *Engine, children []*config.Node) error {
	if c := findNode(children, "name"); c != nil {
		m.name = c.Text
	}

	return nil
}

type namedType struct {
	id string
}

func (t *namedType) Identifier() string {
	return t.id
}

func (t *namedType) Config() []*config.Node {
	return []*config.Node{config.NewNode("identifier", t.id)}
}

func (t *namedType) RestoreConfig(_ *Engine, children []*config.Node) error {
	if c := findNode(children, "identifier"); c != nil {
		t.id = c.Text
	}

	return nil
}

func findNode(nodes []*config.Node, name string) *config.Node {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}

	return nil
}

// callbackUnit calls onTick from its Tick, on the loop goroutine.
type callbackUnit struct {
	onTick func(ctx context.Context)
}

func (u *callbackUnit) Tick(ctx context.Context, _ int64) error {
	if u.onTick != nil {
		u.onTick(ctx)
	}

	return nil
}

func (u *callbackUnit) Config() []*config.Node {
	return nil
}

func (u *callbackUnit) RestoreConfig(*Engine, []*config.Node) error {
	return nil
}
