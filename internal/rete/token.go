package rete

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/wm"
)

// Token carries the tuple of supporting fact handles for one match of a
// rule's compiled pattern, keyed by join root (spec §4.6 "tokens carry the
// tuple of supporting handles"), plus any variables an ACCUMULATE
// conditional element bound while evaluating this match (spec §4.6 item
// 4). Bindings plays no part in match identity — see Key — since an
// accumulated value is a pure function of the working-memory snapshot a
// token was matched against, not an independent axis of the match tuple.
type Token struct {
	Handles  map[string]wm.Handle
	Bindings bind.Bindings
}

// Key returns a canonical string identifying this token's handle tuple,
// used to detect duplicate terminal entries and to diff successive
// propagation rounds.
func (t Token) Key() string {
	roots := make([]string, 0, len(t.Handles))
	for r := range t.Handles {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	var b strings.Builder
	for _, r := range roots {
		fmt.Fprintf(&b, "%s=%d;", r, uint64(t.Handles[r]))
	}
	return b.String()
}

// MatchKind distinguishes a newly-appeared terminal match from one that
// has disappeared since the previous propagation round.
type MatchKind int

const (
	MatchAdded MatchKind = iota
	MatchRemoved
)

// MatchEvent is one terminal-memory delta produced by Network.Propagate.
type MatchEvent struct {
	RuleName string
	Token    Token
	Kind     MatchKind
}
