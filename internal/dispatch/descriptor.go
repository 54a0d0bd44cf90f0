package dispatch

import (
	"strings"

	"dialog-bot/internal/naming"
)

// descriptor is the immutable registration of one handler.
type descriptor struct {
	ident       string
	name        string
	callback    bool
	description string
	params      []Param
	paramNames  []string
	fn          HandlerFunc
}

func newDescriptor(op Op) (*descriptor, error) {
	name, callback := naming.Classify(op.ident)
	if name == "" {
		return nil, errEmptyName
	}
	if op.fn == nil {
		return nil, errNoHandler
	}
	names := make([]string, len(op.params))
	for i, p := range op.params {
		if err := p.validate(); err != nil {
			return nil, err
		}
		names[i] = naming.NormalizeWith(p.Name, " ")
	}
	return &descriptor{
		ident:       op.ident,
		name:        name,
		callback:    callback,
		description: op.description,
		params:      op.params,
		paramNames:  names,
		fn:          op.fn,
	}, nil
}

// bind checks arity and coerces args. It stops at the first bad argument.
func (d *descriptor) bind(args []string) ([]any, error) {
	if len(args) < len(d.params) {
		return nil, &ArityError{Required: len(d.params), Got: len(args)}
	}
	values := make([]any, len(d.params))
	for i, p := range d.params {
		v, err := p.coerce(args[i])
		if err != nil {
			return nil, &ArgumentError{Param: d.paramNames[i], Value: args[i], Err: err}
		}
		values[i] = v
	}
	return values, nil
}

func (d *descriptor) helpLine() string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(strings.ReplaceAll(d.name, "_", `\_`))
	for _, p := range d.paramNames {
		b.WriteString(" <")
		b.WriteString(p)
		b.WriteString(">")
	}
	if d.description != "" {
		b.WriteString(" - ")
		b.WriteString(d.description)
	}
	return b.String()
}
