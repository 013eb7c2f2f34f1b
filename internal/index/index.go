// Package index implements the conclusion index (spec §4.9): a static map
// from a fact-type or "fact-type.field" write-footprint key to the set of
// rules whose actions could produce a value at that key. It bridges the
// forward and backward engines — the backward engine (internal/backward)
// uses Candidates to find rules worth trying to prove a goal, without
// scanning every rule in the knowledge base.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/kb"
)

// Index maps a write-footprint key to the rule names that write it. It
// captures no runtime values, only static structure, so it is safe to
// share read-only across goroutines once Rebuild has returned.
type Index struct {
	mu    sync.RWMutex
	byKey map[string]map[string]bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{byKey: make(map[string]map[string]bool)}
}

// Rebuild recomputes the whole index from scratch from the given rules.
// Idempotent: calling it twice with the same rules yields the same index.
func (ix *Index) Rebuild(rules []*kb.Rule) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byKey = make(map[string]map[string]bool)
	for _, r := range rules {
		for _, key := range conclusionKeys(r.Actions) {
			set, ok := ix.byKey[key]
			if !ok {
				set = make(map[string]bool)
				ix.byKey[key] = set
			}
			set[r.Name] = true
		}
	}
}

// Candidates returns, in O(1) expected map-lookup time, the sorted list of
// rule names whose conclusion set contains goalPath.
func (ix *Index) Candidates(goalPath string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set := ix.byKey[goalPath]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func splitRoot(path string) (root, rest string) {
	i := strings.IndexByte(path, '.')
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

// conclusionKeys performs the static write-footprint analysis described in
// spec §4.9: Set/Call(AssignTo) contribute the written path and its root
// fact type; Assert contributes its fact type and each "type.field" it
// populates. Retract, Log, and AgendaControl write nothing observable to a
// goal path.
func conclusionKeys(actions []action.Action) []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	for _, a := range actions {
		switch v := a.(type) {
		case action.Set:
			add(v.Path)
			if root, rest := splitRoot(v.Path); rest != "" {
				add(root)
			}
		case action.Assert:
			add(v.Type)
			for _, f := range v.Fields {
				add(v.Type + "." + f.Name)
			}
		case action.Call:
			if v.AssignTo != "" {
				add(v.AssignTo)
				if root, rest := splitRoot(v.AssignTo); rest != "" {
					add(root)
				}
			}
		}
	}
	return keys
}
