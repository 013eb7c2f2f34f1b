package agenda

import (
	"container/heap"
	"sync"
)

// Agenda holds every currently pending activation, partitioned by agenda
// group, plus the focus stack and the group-semantics bookkeeping (§4.7):
// activation-group exclusivity, lock-on-active, and no-loop.
type Agenda struct {
	mu sync.Mutex

	strategy Strategy
	seed     int64

	groups     map[string]*groupHeap
	membership map[string]*Activation
	groupOfKey map[string]string

	focus       []string
	focusedEver map[string]bool
	autoFocused map[string]bool

	activationGroupMembers map[string][]*Activation

	firedNoLoop map[string]bool

	recency uint64
	halted  bool
}

// New returns an empty Agenda using the given strategy and random seed
// (the seed only matters for StrategyRandom).
func New(strategy Strategy, seed int64) *Agenda {
	return &Agenda{
		strategy:               strategy,
		seed:                   seed,
		groups:                 make(map[string]*groupHeap),
		membership:             make(map[string]*Activation),
		groupOfKey:             make(map[string]string),
		focusedEver:            make(map[string]bool),
		autoFocused:            make(map[string]bool),
		activationGroupMembers: make(map[string][]*Activation),
		firedNoLoop:            make(map[string]bool),
	}
}

// SetStrategy changes the conflict-resolution strategy; already-pending
// activations are re-ordered under the new strategy.
func (a *Agenda) SetStrategy(s Strategy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strategy = s
	for _, g := range a.groups {
		g.less = s.less
		heap.Init(g)
	}
}

func (a *Agenda) groupFor(name string) *groupHeap {
	g, ok := a.groups[name]
	if !ok {
		g = &groupHeap{less: a.strategy.less}
		a.groups[name] = g
	}
	return g
}

// NextRecency returns the next monotonic insertion counter value, to stamp
// a freshly-built Activation before Insert.
func (a *Agenda) NextRecency() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recency++
	return a.recency
}

// Insert adds act to its agenda group's heap. It is rejected (returns
// false) when: the activation's rule is no-loop and this exact
// handle-tuple already fired this run; the activation is lock-on-active
// and its agenda group has already been focused; or the exact tuple is
// already pending (terminal uniqueness, spec invariant #5).
func (a *Agenda) Insert(act *Activation) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.firedNoLoop[act.key] {
		return false
	}
	if act.LockOnActive && a.focusedEver[act.AgendaGroup] {
		return false
	}
	if _, already := a.membership[act.key]; already {
		return false
	}

	act.State = Pending
	act.randomRank = randomRank(a.seed, act.key)
	g := a.groupFor(act.AgendaGroup)
	heap.Push(g, act)
	a.membership[act.key] = act
	a.groupOfKey[act.key] = act.AgendaGroup

	if act.ActivationGroup != "" {
		a.activationGroupMembers[act.ActivationGroup] = append(a.activationGroupMembers[act.ActivationGroup], act)
	}
	if act.AutoFocus && !a.autoFocused[act.AgendaGroup] {
		a.autoFocused[act.AgendaGroup] = true
		a.pushFocusLocked(act.AgendaGroup)
	}
	return true
}

// Remove withdraws a pending activation by key (used when its supporting
// token disappears from terminal memory, spec §4.6 "token withdrawal").
// A no-op if the key is not currently pending.
func (a *Agenda) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeLocked(key, Cancelled)
}

func (a *Agenda) removeLocked(key string, endState State) {
	act, ok := a.membership[key]
	if !ok || act.State != Pending {
		return
	}
	groupName := a.groupOfKey[key]
	g := a.groups[groupName]
	heap.Remove(g, act.heapIndex)
	delete(a.membership, key)
	delete(a.groupOfKey, key)
	act.State = endState
}

// PopNext pops the highest-priority activation from the top of the focus
// stack, draining exhausted groups off the stack as it goes. Returns nil
// when no activation remains anywhere reachable from the current focus
// stack (the agenda loop's termination condition, spec §4.7).
func (a *Agenda) PopNext() *Activation {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		groupName := ""
		if len(a.focus) > 0 {
			groupName = a.focus[len(a.focus)-1]
		}
		g := a.groups[groupName]
		if g == nil || g.Len() == 0 {
			if len(a.focus) == 0 {
				return nil
			}
			a.focus = a.focus[:len(a.focus)-1]
			continue
		}
		act := heap.Pop(g).(*Activation)
		delete(a.membership, act.key)
		delete(a.groupOfKey, act.key)
		act.State = Firing
		return act
	}
}

// Retire marks act as fired: it records no-loop suppression and enforces
// activation-group exclusivity by cancelling every other pending member of
// act's activation group.
func (a *Agenda) Retire(act *Activation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	act.State = Retired
	if act.NoLoop {
		a.firedNoLoop[act.key] = true
	}
	if act.ActivationGroup != "" {
		members := a.activationGroupMembers[act.ActivationGroup]
		for _, other := range members {
			if other.key != act.key {
				a.removeLocked(other.key, Cancelled)
			}
		}
		delete(a.activationGroupMembers, act.ActivationGroup)
	}
}

// PushFocus pushes group onto the focus stack.
func (a *Agenda) PushFocus(group string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pushFocusLocked(group)
}

func (a *Agenda) pushFocusLocked(group string) {
	a.focus = append(a.focus, group)
	a.focusedEver[group] = true
}

// PopFocus pops the top of the focus stack, if non-empty.
func (a *Agenda) PopFocus() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.focus) > 0 {
		a.focus = a.focus[:len(a.focus)-1]
	}
}

// Focus returns a copy of the current focus stack, bottom to top.
func (a *Agenda) Focus() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.focus))
	copy(out, a.focus)
	return out
}

// ClearGroup cancels every pending activation in the named agenda group.
func (a *Agenda) ClearGroup(group string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.groups[group]
	if g == nil {
		return
	}
	keys := make([]string, 0, g.Len())
	for _, act := range g.items {
		keys = append(keys, act.key)
	}
	for _, k := range keys {
		a.removeLocked(k, Cancelled)
	}
}

// Halt marks the agenda halted; Halted observers should stop the forward
// loop at the next activation boundary.
func (a *Agenda) Halt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.halted = true
}

// Halted reports whether Halt has been called.
func (a *Agenda) Halted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halted
}

// Len returns the total number of pending activations across every group.
func (a *Agenda) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, g := range a.groups {
		n += g.Len()
	}
	return n
}

// Reset clears all agenda state (pending activations, focus stack,
// no-loop/lock-on-active history) for a fresh run.
func (a *Agenda) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.groups = make(map[string]*groupHeap)
	a.membership = make(map[string]*Activation)
	a.groupOfKey = make(map[string]string)
	a.focus = nil
	a.focusedEver = make(map[string]bool)
	a.autoFocused = make(map[string]bool)
	a.activationGroupMembers = make(map[string][]*Activation)
	a.firedNoLoop = make(map[string]bool)
	a.halted = false
}
