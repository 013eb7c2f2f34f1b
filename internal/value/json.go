package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON decodes arbitrary JSON bytes into a Value, the safe, panic-free
// conversion cmd/rulekit's fact-loading flag needs (spec §6 "Persisted
// state layout: callers may serialize working-memory snapshots ({type,
// object} list)"). It follows the teacher's internal/types/extract.go
// idiom of a type switch over every shape encoding/json can produce,
// falling back to an explicit error instead of a bare type assertion.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("value: decode JSON: %w", err)
	}
	return fromAny(raw)
}

func fromAny(raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Null(), fmt.Errorf("value: decode JSON number %q: %w", v.String(), err)
		}
		return Number(f), nil
	case float64:
		if i := int64(v); float64(i) == v {
			return Int(i), nil
		}
		return Number(v), nil
	case []interface{}:
		elems := make([]Value, len(v))
		for i, e := range v {
			ev, err := fromAny(e)
			if err != nil {
				return Null(), err
			}
			elems[i] = ev
		}
		return Array(elems...), nil
	case map[string]interface{}:
		obj := Value{kind: KindObject, index: make(map[string]int, len(v))}
		for _, name := range sortedKeys(v) {
			fv, err := fromAny(v[name])
			if err != nil {
				return Null(), err
			}
			obj.Set1(name, fv)
		}
		return obj, nil
	default:
		return Null(), fmt.Errorf("value: unsupported JSON shape %T", raw)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable, deterministic field order for round-tripping and test output;
	// object field order is otherwise whatever encoding/json's map
	// iteration happens to give, which Go explicitly randomizes.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// ToJSON renders v as JSON, the inverse of FromJSON, for callers
// serializing a working-memory snapshot back out (spec §6 "Persisted state
// layout").
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(toAny(v))
}

func toAny(v Value) interface{} {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindString:
		return v.AsString()
	case KindInt:
		return v.AsInt()
	case KindNumber:
		return v.AsNumber()
	case KindBool:
		return v.AsBool()
	case KindArray:
		arr := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = toAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]interface{})
		for _, p := range v.Fields() {
			out[p.Name] = toAny(p.Value)
		}
		return out
	default:
		return nil
	}
}
