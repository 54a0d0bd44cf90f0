package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParamKind selects how a text argument is coerced.
type ParamKind uint8

const (
	paramUnsupported ParamKind = iota
	ParamString
	ParamInt
	ParamFloat
	ParamBool
	ParamEnum
)

func (k ParamKind) String() string {
	switch k {
	case ParamString:
		return "string"
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamBool:
		return "bool"
	case ParamEnum:
		return "enum"
	default:
		return "unsupported"
	}
}

// Param describes one positional handler parameter.
type Param struct {
	Name   string
	Kind   ParamKind
	Values []string // ParamEnum only
	goType string
}

var (
	errNoCoercion = errors.New("no text coercion")
	errNotInEnum  = errors.New("not one of the allowed values")
)

func (p Param) validate() error {
	switch p.Kind {
	case ParamString, ParamInt, ParamFloat, ParamBool:
	case ParamEnum:
		if len(p.Values) == 0 {
			return fmt.Errorf("enum parameter %q has no values: %w", p.Name, errNoCoercion)
		}
	default:
		return fmt.Errorf("parameters of type %s are not allowed: %w", p.goType, errNoCoercion)
	}
	if p.Name == "" {
		return fmt.Errorf("parameter of type %s has no name", p.goType)
	}
	return nil
}

func (p Param) coerce(raw string) (any, error) {
	switch p.Kind {
	case ParamString:
		return raw, nil
	case ParamInt:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case ParamFloat:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case ParamBool:
		return parseBool(raw)
	case ParamEnum:
		for _, v := range p.Values {
			if strings.EqualFold(v, strings.TrimSpace(raw)) {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%q: %w", raw, errNotInEnum)
	default:
		return nil, errNoCoercion
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}

// Arg is a typed parameter descriptor. Build one with String, Int, Float,
// Bool or Enum; the zero value has no coercion and is rejected when the
// handler is registered.
type Arg[T any] struct {
	p Param
}

func newArg[T any](name string, kind ParamKind, values ...string) Arg[T] {
	var zero T
	return Arg[T]{p: Param{Name: name, Kind: kind, Values: values, goType: fmt.Sprintf("%T", zero)}}
}

func String(name string) Arg[string] { return newArg[string](name, ParamString) }

func Int(name string) Arg[int64] { return newArg[int64](name, ParamInt) }

func Float(name string) Arg[float64] { return newArg[float64](name, ParamFloat) }

func Bool(name string) Arg[bool] { return newArg[bool](name, ParamBool) }

// Enum accepts one of values, matched case-insensitively. The handler
// receives the value as declared.
func Enum(name string, values ...string) Arg[string] {
	return newArg[string](name, ParamEnum, values...)
}

func (a Arg[T]) param() Param {
	if a.p.goType == "" {
		var zero T
		a.p.goType = fmt.Sprintf("%T", zero)
	}
	return a.p
}
