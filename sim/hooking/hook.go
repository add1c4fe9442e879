package hooking

import (
	"context"
	"sync"
)

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}

	// Context is the context of the goroutine that invokes the hook. Hooks
	// triggered by a simulation loop receive the loop's context here.
	Context context.Context
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// RemoveHook unregisters a hook. Removing a hook that is not registered
	// has no effect.
	RemoveHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

type funcHook struct {
	f func(ctx HookCtx)
}

func (h *funcHook) Func(ctx HookCtx) {
	h.f(ctx)
}

// NewFuncHook wraps a plain function into a Hook. Every call returns a distinct
// hook, so the result can be registered and later removed.
func NewFuncHook(f func(ctx HookCtx)) Hook {
	return &funcHook{f: f}
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface. Hooks can be added and removed from any goroutine,
// including from inside a hook; an invocation in progress keeps using the
// hook list that was current when it started.
type HookableBase struct {
	lock     sync.Mutex
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.snapshot())
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	hooks := h.snapshot()

	out := make([]Hook, len(hooks))
	copy(out, hooks)

	return out
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.mustNotHaveDuplicatedHook(hook)

	newList := make([]Hook, len(h.hookList), len(h.hookList)+1)
	copy(newList, h.hookList)
	h.hookList = append(newList, hook)
}

// RemoveHook unregisters a hook.
func (h *HookableBase) RemoveHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	newList := make([]Hook, 0, len(h.hookList))
	for _, registered := range h.hookList {
		if registered != hook {
			newList = append(newList, registered)
		}
	}

	h.hookList = newList
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, h := range h.hookList {
		if h == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the register Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.snapshot() {
		hook.Func(ctx)
	}
}

func (h *HookableBase) snapshot() []Hook {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.hookList
}
