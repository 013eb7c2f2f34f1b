// Package wm implements working memory (spec §3 "Working-memory
// invariants", §4.5): the fact store keyed by opaque handle, its type
// index, and the mutation log consumed by the discrimination network on
// every propagation round.
package wm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/internal/value"
)

// Handle is an opaque, monotonically-assigned fact identifier. Handles are
// not reused across retract/insert cycles; Reset restarts numbering at 1.
type Handle uint64

func (h Handle) String() string { return fmt.Sprintf("#%d", uint64(h)) }

// TemplateSource resolves a fact-type name to its declared template, if
// any. internal/kb.KnowledgeBase satisfies this interface; wm only depends
// on this narrow slice of it so the two packages have no import cycle.
type TemplateSource interface {
	Template(factType string) (value.Template, bool)
}

// TemplateViolation is returned by Insert/Update when a templated fact
// fails validation. Field/Reason mirror value.TemplateViolation.
type TemplateViolation = value.TemplateViolation

// Unknown is returned by Update/Retract for a handle that is not live.
type Unknown struct{ Handle Handle }

func (e *Unknown) Error() string { return fmt.Sprintf("unknown handle %s", e.Handle) }

// record is the stored state for one live fact.
type record struct {
	fact value.Fact
}

// ChangeSet is the drained-and-cleared mutation log: the set of handles
// inserted, updated, or retracted since the previous drain.
type ChangeSet struct {
	Inserted []Handle
	Updated  []Handle
	Retracted []Handle
}

func (c ChangeSet) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Retracted) == 0
}

// WorkingMemory is the fact store. It is safe for concurrent use: readers
// (agenda scheduling, evaluation) take the read lock; writers (insert,
// update, retract) take the write lock for the duration of the mutation,
// mirroring the teacher's Engine.mu sync.RWMutex discipline around fact
// mutation versus query-context reads.
type WorkingMemory struct {
	mu sync.RWMutex

	templates TemplateSource
	next      Handle
	facts     map[Handle]record
	byType    map[string]map[Handle]struct{}

	changes ChangeSet
}

// New returns an empty WorkingMemory. templates may be nil, in which case
// all inserts are untemplated.
func New(templates TemplateSource) *WorkingMemory {
	return &WorkingMemory{
		templates: templates,
		facts:     make(map[Handle]record),
		byType:    make(map[string]map[Handle]struct{}),
	}
}

func (w *WorkingMemory) validate(factType string, data value.Value) (value.Value, error) {
	if w.templates == nil {
		return data, nil
	}
	tpl, ok := w.templates.Template(factType)
	if !ok {
		return data, nil
	}
	return tpl.Validate(data)
}

// Insert validates data against factType's template (if registered) and
// adds it to working memory, returning its new handle.
func (w *WorkingMemory) Insert(factType string, data value.Value) (Handle, error) {
	checked, err := w.validate(factType, data)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	h := w.next
	w.facts[h] = record{fact: value.Fact{Type: factType, Data: checked, CorrelationID: uuid.NewString()}}
	w.indexAddLocked(factType, h)
	w.changes.Inserted = append(w.changes.Inserted, h)
	return h, nil
}

// Update replaces the fact under handle h with value, semantically a
// retract-then-insert under the same handle; this counts as one change
// event (an Updated entry), not a Retracted+Inserted pair.
func (w *WorkingMemory) Update(h Handle, data value.Value) error {
	w.mu.RLock()
	rec, ok := w.facts[h]
	w.mu.RUnlock()
	if !ok {
		return &Unknown{Handle: h}
	}

	checked, err := w.validate(rec.fact.Type, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.facts[h]; !ok {
		return &Unknown{Handle: h}
	}
	w.facts[h] = record{fact: value.Fact{Type: rec.fact.Type, Data: checked, CorrelationID: rec.fact.CorrelationID}}
	w.changes.Updated = append(w.changes.Updated, h)
	return nil
}

// Retract removes the fact under handle h. The handle is not reissued
// before the next Reset.
func (w *WorkingMemory) Retract(h Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.facts[h]
	if !ok {
		return &Unknown{Handle: h}
	}
	delete(w.facts, h)
	w.indexRemoveLocked(rec.fact.Type, h)
	w.changes.Retracted = append(w.changes.Retracted, h)
	return nil
}

// Get returns the fact stored under h.
func (w *WorkingMemory) Get(h Handle) (value.Fact, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec, ok := w.facts[h]
	return rec.fact, ok
}

// ByType returns the live handles of the given fact type, sorted for
// deterministic iteration.
func (w *WorkingMemory) ByType(factType string) []Handle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	set := w.byType[factType]
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Types returns every fact type currently represented in working memory.
func (w *WorkingMemory) Types() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.byType))
	for t, set := range w.byType {
		if len(set) > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// DrainChanges returns and clears the mutation log.
func (w *WorkingMemory) DrainChanges() ChangeSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	cs := w.changes
	w.changes = ChangeSet{}
	return cs
}

// Snapshot is a cheap, immutable view of working memory at the moment it
// was taken, for evaluator calls that must not observe concurrent
// mutations (spec §5).
type Snapshot struct {
	facts map[Handle]value.Fact
}

// Snapshot takes an immutable copy of the current live facts.
func (w *WorkingMemory) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	facts := make(map[Handle]value.Fact, len(w.facts))
	for h, rec := range w.facts {
		facts[h] = rec.fact
	}
	return Snapshot{facts: facts}
}

// Get returns the fact stored under h within the snapshot.
func (s Snapshot) Get(h Handle) (value.Fact, bool) {
	f, ok := s.facts[h]
	return f, ok
}

// All returns every (handle, fact) pair in the snapshot.
func (s Snapshot) All() map[Handle]value.Fact { return s.facts }

// ByType returns the handles of the given fact type within the snapshot,
// sorted for deterministic iteration.
func (s Snapshot) ByType(factType string) []Handle {
	out := make([]Handle, 0)
	for h, f := range s.facts {
		if f.Type == factType {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *WorkingMemory) indexAddLocked(factType string, h Handle) {
	set, ok := w.byType[factType]
	if !ok {
		set = make(map[Handle]struct{})
		w.byType[factType] = set
	}
	set[h] = struct{}{}
}

func (w *WorkingMemory) indexRemoveLocked(factType string, h Handle) {
	if set, ok := w.byType[factType]; ok {
		delete(set, h)
	}
}

// Reset clears all facts, the type index, and the mutation log, discarding
// any pending changes. Callers that need reset-then-deffacts semantics
// (spec §6 Engine::reset) perform the deffacts insertion afterward.
func (w *WorkingMemory) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.facts = make(map[Handle]record)
	w.byType = make(map[string]map[Handle]struct{})
	w.changes = ChangeSet{}
	w.next = 0
}
