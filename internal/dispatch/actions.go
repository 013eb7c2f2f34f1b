package dispatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

func (d *Dispatcher) execSet(v action.Set, handles HandleLookup, b bind.Bindings) (undoStep, error) {
	val, err := d.evalUnderBindings(v.Expr, b)
	if err != nil {
		return nil, err
	}

	root, rest := splitRoot(v.Path)
	if rest == "" {
		if _, ok := d.KB.ResolveGlobal(v.Path); ok {
			old, _ := d.KB.ResolveGlobal(v.Path)
			if err := d.KB.SetGlobal(v.Path, val); err != nil {
				return nil, err
			}
			return func() { _ = d.KB.SetGlobal(v.Path, old) }, nil
		}
		return nil, &UnknownTarget{Path: v.Path}
	}

	h, ok := handles.Handle(root)
	if !ok {
		return nil, &UnknownTarget{Path: v.Path}
	}
	fact, ok := d.WM.Get(h)
	if !ok {
		return nil, &UnknownTarget{Path: v.Path}
	}
	newData, err := fact.Data.Set(rest, val)
	if err != nil {
		return nil, err
	}
	oldData := fact.Data
	if err := d.WM.Update(h, newData); err != nil {
		return nil, err
	}
	return func() { _ = d.WM.Update(h, oldData) }, nil
}

func (d *Dispatcher) execAssert(v action.Assert, b bind.Bindings) (undoStep, error) {
	pairs := make([]value.Pair, 0, len(v.Fields))
	for _, f := range v.Fields {
		val, err := d.evalUnderBindings(f.Expr, b)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, value.F(f.Name, val))
	}
	h, err := d.WM.Insert(v.Type, value.Object(pairs...))
	if err != nil {
		return nil, err
	}
	return func() { _ = d.WM.Retract(h) }, nil
}

func (d *Dispatcher) execRetract(v action.Retract, handles HandleLookup, b bind.Bindings) (undoStep, error) {
	h, ok := d.resolveRetractHandle(v.HandleExpr, handles, b)
	if !ok {
		return nil, fmt.Errorf("dispatch: retract target did not resolve to a live fact")
	}
	fact, hadFact := d.WM.Get(h)
	if err := d.WM.Retract(h); err != nil {
		return nil, err
	}
	// Best-effort undo: a retracted handle is never reused (spec §4.5), so
	// this reinsertion restores the fact's data under a new handle rather
	// than its original identity.
	return func() {
		if hadFact {
			_, _ = d.WM.Insert(fact.Type, fact.Data)
		}
	}, nil
}

func (d *Dispatcher) resolveRetractHandle(e expr.Expr, handles HandleLookup, b bind.Bindings) (wm.Handle, bool) {
	if f, ok := e.(expr.Field); ok {
		if root, rest := splitRoot(f.Path); rest == "" {
			if h, ok := handles.Handle(root); ok {
				return h, true
			}
		}
	}
	val, err := d.evalUnderBindings(e, b)
	if err != nil {
		return 0, false
	}
	return wm.Handle(uint64(val.AsInt())), true
}

func (d *Dispatcher) execCall(v action.Call, handles HandleLookup, b bind.Bindings) (undoStep, error) {
	fn, ok := d.KB.Functions().Lookup(v.Function)
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown function %q", v.Function)
	}
	args := make([]value.Value, len(v.Args))
	for i, a := range v.Args {
		val, err := d.evalUnderBindings(a, b)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	result, err := fn.Call(args)
	if err != nil {
		return nil, err
	}
	if v.AssignTo == "" {
		return nil, nil
	}
	return d.execSet(action.Set{Path: v.AssignTo, Expr: expr.Literal{Value: result}}, handles, b)
}

func (d *Dispatcher) execLog(v action.Log, b bind.Bindings) (undoStep, error) {
	msg, err := d.evalUnderBindings(v.Message, b)
	if err != nil {
		return nil, err
	}
	fields := make([]zap.Field, 0, len(b.Names())+1)
	fields = append(fields, zap.Any("message", describeValue(msg)))
	for _, name := range b.Names() {
		bv, _ := b.Get(name)
		fields = append(fields, zap.Any(name, describeValue(bv)))
	}
	switch v.Level {
	case action.LogDebug:
		d.Logger.Debug("rule log", fields...)
	case action.LogWarn:
		d.Logger.Warn("rule log", fields...)
	case action.LogError:
		d.Logger.Error("rule log", fields...)
	default:
		d.Logger.Info("rule log", fields...)
	}
	return nil, nil
}

func (d *Dispatcher) execAgendaControl(v action.AgendaControl) (undoStep, error) {
	if d.Agenda == nil {
		return nil, nil
	}
	switch v.Op {
	case action.AgendaPushFocus:
		d.Agenda.PushFocus(v.Group)
	case action.AgendaPopFocus:
		d.Agenda.PopFocus()
	case action.AgendaHalt:
		d.Agenda.Halt()
	case action.AgendaClearGroup:
		d.Agenda.ClearGroup(v.Group)
	}
	return nil, nil
}

// describeValue renders a Value as a plain Go value for structured logging,
// since value.Value itself doesn't implement zapcore.ObjectMarshaler.
func describeValue(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindString:
		return v.AsString()
	case value.KindInt:
		return v.AsInt()
	case value.KindNumber:
		return v.AsNumber()
	case value.KindBool:
		return v.AsBool()
	case value.KindNull:
		return nil
	default:
		return v.Kind().String()
	}
}
