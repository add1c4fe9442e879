package hooking

import (
	"sync"
)

// PosCountTracer counts how many times each hook position is triggered.
type PosCountTracer struct {
	lock sync.Mutex

	posNames []string
	posCount map[string]uint64
}

// NewPosCountTracer creates a new PosCountTracer
func NewPosCountTracer() *PosCountTracer {
	t := &PosCountTracer{
		posCount: make(map[string]uint64),
	}

	return t
}

// Func counts the position of the hook invocation.
func (t *PosCountTracer) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.countPos(ctx.Pos.Name)
}

// GetPosNames returns all the position names collected, in the order they were
// first seen.
func (t *PosCountTracer) GetPosNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.posNames))
	copy(names, t.posNames)

	return names
}

// GetPosCount returns the number of times a position has been triggered.
func (t *PosCountTracer) GetPosCount(pos *HookPos) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.posCount[pos.Name]
}

// Counts returns a copy of all the counters, keyed by position name.
func (t *PosCountTracer) Counts() map[string]uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	counts := make(map[string]uint64, len(t.posCount))
	for name, count := range t.posCount {
		counts[name] = count
	}

	return counts
}

func (t *PosCountTracer) countPos(name string) {
	_, ok := t.posCount[name]
	if !ok {
		t.posNames = append(t.posNames, name)
	}

	t.posCount[name]++
}
