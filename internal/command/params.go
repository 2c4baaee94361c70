package command

import (
	"fmt"
	"math"
)

// Params are the decoded "params" object of a command. JSON numbers arrive
// as float64.
type Params map[string]any

// ParamError reports a missing or mistyped parameter.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func missing(name string) error {
	return &ParamError{Param: name, Reason: "is required"}
}

// Has reports whether the parameter is present and not null.
func (p Params) Has(name string) bool {
	v, ok := p[name]
	return ok && v != nil
}

// String returns a required string parameter.
func (p Params) String(name string) (string, error) {
	if !p.Has(name) {
		return "", missing(name)
	}
	s, ok := p[name].(string)
	if !ok {
		return "", &ParamError{Param: name, Reason: "must be a string"}
	}
	return s, nil
}

// StringOr returns an optional string parameter.
func (p Params) StringOr(name, def string) (string, error) {
	if !p.Has(name) {
		return def, nil
	}
	return p.String(name)
}

// Float returns a required number parameter.
func (p Params) Float(name string) (float64, error) {
	if !p.Has(name) {
		return 0, missing(name)
	}
	f, ok := toFloat(p[name])
	if !ok {
		return 0, &ParamError{Param: name, Reason: "must be a number"}
	}
	return f, nil
}

// BoolOr returns an optional boolean parameter.
func (p Params) BoolOr(name string, def bool) (bool, error) {
	if !p.Has(name) {
		return def, nil
	}
	b, ok := p[name].(bool)
	if !ok {
		return false, &ParamError{Param: name, Reason: "must be a boolean"}
	}
	return b, nil
}

// Floats returns an optional array of numbers whose length is one of the
// allowed lengths. The second result reports whether it was present.
func (p Params) Floats(name string, lengths ...int) ([]float64, bool, error) {
	if !p.Has(name) {
		return nil, false, nil
	}
	raw, ok := p[name].([]any)
	if !ok {
		return nil, true, &ParamError{Param: name, Reason: "must be an array of numbers"}
	}
	if len(lengths) > 0 && !containsInt(lengths, len(raw)) {
		return nil, true, &ParamError{Param: name, Reason: fmt.Sprintf("must have %v elements, got %d", lengths, len(raw))}
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := toFloat(v)
		if !ok {
			return nil, true, &ParamError{Param: name, Reason: fmt.Sprintf("element %d must be a number", i)}
		}
		out[i] = f
	}
	return out, true, nil
}

// Vec3 returns an optional [x, y, z] parameter.
func (p Params) Vec3(name string) ([3]float64, bool, error) {
	vals, ok, err := p.Floats(name, 3)
	if err != nil || !ok {
		return [3]float64{}, ok, err
	}
	return [3]float64{vals[0], vals[1], vals[2]}, true, nil
}

// Strings returns an optional array of strings. A single string is accepted
// as a one-element list; a comma-separated string is not split.
func (p Params) Strings(name string) ([]string, error) {
	if !p.Has(name) {
		return nil, nil
	}
	switch v := p[name].(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ParamError{Param: name, Reason: fmt.Sprintf("element %d must be a string", i)}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &ParamError{Param: name, Reason: "must be a string or an array of strings"}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
