package expr

import (
	"regexp"
	"strings"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/value"
)

// FactContext resolves a dotted Field path against whatever facts are
// currently in scope for an evaluation: a single fact (alpha-node test), a
// joined tuple of facts (beta-node residual test), or a goal's fact
// candidate (backward engine). Implementations live alongside their
// owning component.
type FactContext interface {
	Resolve(path string) (value.Value, bool)
}

// Globals resolves a bare name against the knowledge base's global cells,
// consulted by Field only after the fact context misses.
type Globals interface {
	Resolve(name string) (value.Value, bool)
}

// emptyFacts is used when no fact context applies (e.g. evaluating a
// globals-only or literal expression).
type emptyFacts struct{}

func (emptyFacts) Resolve(string) (value.Value, bool) { return value.Null(), false }

// EmptyFactContext is a FactContext that never resolves anything.
var EmptyFactContext FactContext = emptyFacts{}

type emptyGlobals struct{}

func (emptyGlobals) Resolve(string) (value.Value, bool) { return value.Null(), false }

// EmptyGlobals is a Globals that never resolves anything.
var EmptyGlobals Globals = emptyGlobals{}

// Env bundles everything Eval needs beyond the AST node itself.
type Env struct {
	Facts            FactContext
	Globals          Globals
	Bindings         bind.Bindings
	Functions        *Registry
	AllowEffects bool // true only when evaluating from an action (spec §4.12)
}

// Eval evaluates an AST node against env, returning its Value or an error.
// Not/And/Or short-circuit; Arithmetic on integers stays integer where
// exact, else promotes to number; Accumulate/Multifield operate on a
// collection produced by their inner expression.
func Eval(node Expr, env Env) (value.Value, error) {
	switch n := node.(type) {
	case Field:
		if v, ok := env.Facts.Resolve(n.Path); ok {
			return v, nil
		}
		if v, ok := env.Globals.Resolve(n.Path); ok {
			return v, nil
		}
		return value.Null(), nil

	case Literal:
		return n.Value, nil

	case Variable:
		v, ok := env.Bindings.Get(n.Name)
		if !ok {
			return value.Null(), &UnboundVariable{Name: n.Name}
		}
		return v, nil

	case Comparison:
		return evalComparison(n, env)

	case Arithmetic:
		return evalArithmetic(n, env)

	case And:
		for _, c := range n.Children {
			v, err := Eval(c, env)
			if err != nil {
				return value.Null(), err
			}
			if !value.Truthy(v) {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil

	case Or:
		for _, c := range n.Children {
			v, err := Eval(c, env)
			if err != nil {
				return value.Null(), err
			}
			if value.Truthy(v) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil

	case Not:
		v, err := Eval(n.Child, env)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(!value.Truthy(v)), nil

	case Test:
		v, err := Eval(*n.Call, env)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(value.Truthy(v)), nil

	case Call:
		return evalCall(n, env)

	case Accumulate:
		return evalAccumulate(n, env)

	case Multifield:
		return evalMultifield(n, env)

	case Exists, Forall:
		// Exists/Forall are conditional-element nodes whose truth depends on
		// a collection of matches over working memory, not a single Env.
		// The RETE network (internal/rete) evaluates both against its own
		// match-counting state; the backward engine (internal/backward)
		// proves Exists as "Inner has at least one proof" and has no Forall
		// case, so a Forall goal fails there. Neither delegates to Eval.
		return value.Null(), &UnknownFunction{Name: "exists/forall must be evaluated by the owning engine"}

	default:
		return value.Null(), &UnknownFunction{Name: "unrecognized expression node"}
	}
}

func evalComparison(n Comparison, env Env) (value.Value, error) {
	lhs, err := Eval(n.Lhs, env)
	if err != nil {
		return value.Null(), err
	}
	rhs, err := Eval(n.Rhs, env)
	if err != nil {
		return value.Null(), err
	}

	switch n.Op {
	case OpEq:
		return value.Bool(value.Equal(lhs, rhs)), nil
	case OpNeq:
		return value.Bool(!value.Equal(lhs, rhs)), nil
	case OpLt, OpLte, OpGt, OpGte:
		c, ok := value.Compare(lhs, rhs)
		if !ok {
			return value.Null(), &value.TypeMismatch{Op: string(n.Op), Kinds: []value.Kind{lhs.Kind(), rhs.Kind()}, Expected: "ordered kinds"}
		}
		switch n.Op {
		case OpLt:
			return value.Bool(c < 0), nil
		case OpLte:
			return value.Bool(c <= 0), nil
		case OpGt:
			return value.Bool(c > 0), nil
		default:
			return value.Bool(c >= 0), nil
		}
	case OpContains:
		return value.Bool(containsOp(lhs, rhs)), nil
	case OpStartsWith:
		if lhs.Kind() != value.KindString || rhs.Kind() != value.KindString {
			return value.Null(), &value.TypeMismatch{Op: "startsWith", Kinds: []value.Kind{lhs.Kind(), rhs.Kind()}, Expected: "string, string"}
		}
		return value.Bool(strings.HasPrefix(lhs.AsString(), rhs.AsString())), nil
	case OpEndsWith:
		if lhs.Kind() != value.KindString || rhs.Kind() != value.KindString {
			return value.Null(), &value.TypeMismatch{Op: "endsWith", Kinds: []value.Kind{lhs.Kind(), rhs.Kind()}, Expected: "string, string"}
		}
		return value.Bool(strings.HasSuffix(lhs.AsString(), rhs.AsString())), nil
	case OpMatches:
		if lhs.Kind() != value.KindString || rhs.Kind() != value.KindString {
			return value.Null(), &value.TypeMismatch{Op: "matches", Kinds: []value.Kind{lhs.Kind(), rhs.Kind()}, Expected: "string, string"}
		}
		re, err := regexp.Compile(rhs.AsString())
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(re.MatchString(lhs.AsString())), nil
	case OpIn:
		if rhs.Kind() != value.KindArray {
			return value.Null(), &value.TypeMismatch{Op: "in", Kinds: []value.Kind{rhs.Kind()}, Expected: "array"}
		}
		for _, e := range rhs.AsArray() {
			if value.Equal(lhs, e) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return value.Null(), &UnknownFunction{Name: "unrecognized comparison operator " + string(n.Op)}
}

func containsOp(lhs, rhs value.Value) bool {
	switch lhs.Kind() {
	case value.KindString:
		if rhs.Kind() != value.KindString {
			return false
		}
		return strings.Contains(lhs.AsString(), rhs.AsString())
	case value.KindArray:
		for _, e := range lhs.AsArray() {
			if value.Equal(e, rhs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalArithmetic(n Arithmetic, env Env) (value.Value, error) {
	lhs, err := Eval(n.Lhs, env)
	if err != nil {
		return value.Null(), err
	}
	rhs, err := Eval(n.Rhs, env)
	if err != nil {
		return value.Null(), err
	}

	if lhs.Kind() == value.KindInt && rhs.Kind() == value.KindInt {
		a, b := lhs.AsInt(), rhs.AsInt()
		switch n.Op {
		case ArithAdd:
			return value.Int(a + b), nil
		case ArithSub:
			return value.Int(a - b), nil
		case ArithMul:
			return value.Int(a * b), nil
		case ArithDiv:
			if b == 0 {
				return value.Null(), &DivisionByZero{Op: n.Op}
			}
			if a%b == 0 {
				return value.Int(a / b), nil
			}
			return value.Number(float64(a) / float64(b)), nil
		case ArithMod:
			if b == 0 {
				return value.Null(), &DivisionByZero{Op: n.Op}
			}
			return value.Int(a % b), nil
		}
	}

	af, aok := asFloat(lhs)
	bf, bok := asFloat(rhs)
	if !aok || !bok {
		return value.Null(), &value.TypeMismatch{Op: string(n.Op), Kinds: []value.Kind{lhs.Kind(), rhs.Kind()}, Expected: "numeric"}
	}
	switch n.Op {
	case ArithAdd:
		return value.Number(af + bf), nil
	case ArithSub:
		return value.Number(af - bf), nil
	case ArithMul:
		return value.Number(af * bf), nil
	case ArithDiv:
		if bf == 0 {
			return value.Null(), &DivisionByZero{Op: n.Op}
		}
		return value.Number(af / bf), nil
	case ArithMod:
		if bf == 0 {
			return value.Null(), &DivisionByZero{Op: n.Op}
		}
		return value.Number(float64(int64(af) % int64(bf))), nil
	}
	return value.Null(), &UnknownFunction{Name: "unrecognized arithmetic operator " + string(n.Op)}
}

func asFloat(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInt:
		return float64(v.AsInt()), true
	case value.KindNumber:
		return v.AsNumber(), true
	default:
		return 0, false
	}
}

func evalCall(n Call, env Env) (value.Value, error) {
	if env.Functions == nil {
		return value.Null(), &UnknownFunction{Name: n.Function}
	}
	fn, ok := env.Functions.Lookup(n.Function)
	if !ok {
		return value.Null(), &UnknownFunction{Name: n.Function}
	}
	if fn.Effectful && !env.AllowEffects {
		return value.Null(), &EffectCallNotAllowed{Name: n.Function}
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, env)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	return fn.Call(args)
}

func evalAccumulate(n Accumulate, env Env) (value.Value, error) {
	coll, err := Eval(n.Expr, env)
	if err != nil {
		return value.Null(), err
	}
	if coll.Kind() != value.KindArray {
		return value.Null(), &value.TypeMismatch{Op: string(n.Op), Kinds: []value.Kind{coll.Kind()}, Expected: "array"}
	}
	elems := coll.AsArray()
	switch n.Op {
	case AccCount:
		return value.Int(int64(len(elems))), nil
	case AccSum, AccAvg, AccMin, AccMax:
		if len(elems) == 0 {
			if n.Op == AccSum {
				return value.Int(0), nil
			}
			return value.Null(), nil
		}
		var sum float64
		best, bestOK := 0.0, false
		for _, e := range elems {
			f, ok := asFloat(e)
			if !ok {
				return value.Null(), &value.TypeMismatch{Op: string(n.Op), Kinds: []value.Kind{e.Kind()}, Expected: "numeric"}
			}
			sum += f
			switch n.Op {
			case AccMin:
				if !bestOK || f < best {
					best, bestOK = f, true
				}
			case AccMax:
				if !bestOK || f > best {
					best, bestOK = f, true
				}
			}
		}
		switch n.Op {
		case AccSum:
			return value.Number(sum), nil
		case AccAvg:
			return value.Number(sum / float64(len(elems))), nil
		default:
			return value.Number(best), nil
		}
	}
	return value.Null(), &UnknownFunction{Name: "unrecognized accumulate operator " + string(n.Op)}
}

func evalMultifield(n Multifield, env Env) (value.Value, error) {
	coll, err := Eval(n.Field, env)
	if err != nil {
		return value.Null(), err
	}
	if coll.Kind() != value.KindArray {
		return value.Null(), &value.TypeMismatch{Op: string(n.Op), Kinds: []value.Kind{coll.Kind()}, Expected: "array"}
	}
	elems := coll.AsArray()

	operand := value.Null()
	if n.Operand != nil {
		operand, err = Eval(n.Operand, env)
		if err != nil {
			return value.Null(), err
		}
	}

	switch n.Op {
	case MfContains:
		for _, e := range elems {
			if value.Equal(e, operand) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case MfCount:
		return value.Int(int64(len(elems))), nil
	case MfFirst:
		if len(elems) == 0 {
			return value.Null(), nil
		}
		return elems[0], nil
	case MfLast:
		if len(elems) == 0 {
			return value.Null(), nil
		}
		return elems[len(elems)-1], nil
	case MfIndex:
		idx := int(operand.AsInt())
		if idx < 0 || idx >= len(elems) {
			return value.Null(), nil
		}
		return elems[idx], nil
	case MfSlice:
		if operand.Kind() != value.KindArray || len(operand.AsArray()) != 2 {
			return value.Null(), &value.TypeMismatch{Op: "slice", Kinds: []value.Kind{operand.Kind()}, Expected: "[start, end]"}
		}
		bounds := operand.AsArray()
		start, end := int(bounds[0].AsInt()), int(bounds[1].AsInt())
		if start < 0 {
			start = 0
		}
		if end > len(elems) {
			end = len(elems)
		}
		if start > end {
			start = end
		}
		return value.Array(elems[start:end]...), nil
	case MfEmpty:
		return value.Bool(len(elems) == 0), nil
	case MfNotEmpty:
		return value.Bool(len(elems) != 0), nil
	case MfCollect:
		return value.Array(elems...), nil
	}
	return value.Null(), &UnknownFunction{Name: "unrecognized multifield operator " + string(n.Op)}
}
