// Package agenda implements the agenda and conflict resolution (spec
// §4.7): activation records, per-agenda-group priority heaps, the
// configurable conflict-resolution strategies, the focus stack, and
// activation-group / no-loop / lock-on-active group semantics.
package agenda

import (
	"hash/fnv"
	"strconv"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
)

// State is an activation's position in the spec §4.7 state machine:
// Pending -> Firing -> Retired, or Pending -> Cancelled.
type State int

const (
	Pending State = iota
	Firing
	Retired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Firing:
		return "firing"
	case Retired:
		return "retired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Activation is one candidate rule firing: a rule name together with the
// supporting handle tuple and bindings that made its pattern true.
type Activation struct {
	RuleName        string
	Token           rete.Token
	Bindings        bind.Bindings
	Salience        int
	AgendaGroup     string
	ActivationGroup string
	RuleflowGroup   string
	NoLoop          bool
	LockOnActive    bool
	AutoFocus       bool
	Recency         uint64
	Specificity     int
	State           State

	key        string
	randomRank uint64
	heapIndex  int
}

// Key identifies this activation's (rule, handle-tuple) pair, stable
// across re-matches of the exact same tuple.
func (a *Activation) Key() string { return a.key }

// New builds an Activation from a matched rule and its supporting token.
// recency is a monotonically increasing insertion counter supplied by the
// Agenda; seed parameterizes the Random strategy's deterministic ranking
// until Agenda.Insert re-ranks the activation with the agenda's own seed.
func New(rule *kb.Rule, tok rete.Token, recency uint64, seed int64) *Activation {
	key := rule.Name + "\x00" + tok.Key()
	return &Activation{
		RuleName:        rule.Name,
		Token:           tok,
		Bindings:        tok.Bindings,
		Salience:        rule.Meta.Salience,
		AgendaGroup:     rule.Meta.AgendaGroup,
		ActivationGroup: rule.Meta.ActivationGroup,
		RuleflowGroup:   rule.Meta.RuleflowGroup,
		NoLoop:          rule.Meta.NoLoop,
		LockOnActive:    rule.Meta.LockOnActive,
		AutoFocus:       rule.Meta.AutoFocus,
		Recency:         recency,
		Specificity:     len(tok.Handles),
		State:           Pending,
		key:             key,
		randomRank:      randomRank(seed, key),
	}
}

func randomRank(seed int64, key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(seed, 10)))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return h.Sum64()
}
