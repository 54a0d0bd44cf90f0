package dispatch

import (
	"context"

	"dialog-bot/internal/model"
	"dialog-bot/internal/naming"
	"dialog-bot/internal/reply"
)

// HandlerFunc receives already coerced arguments in declaration order.
type HandlerFunc func(ctx context.Context, user *model.User, args []any) (reply.Response, error)

// Op is one entry of a conversation's registration table. The identifier
// decides its name and kind: "ShowProfile" becomes the command
// /show_profile, "PickItemCallback" the callback pick_item.
type Op struct {
	ident       string
	description string
	params      []Param
	fn          HandlerFunc
}

// Describe attaches the text shown after the command in /help.
func (o Op) Describe(description string) Op {
	o.description = description
	return o
}

// Name returns the normalized name the op is registered under.
func (o Op) Name() string {
	name, _ := naming.Classify(o.ident)
	return name
}

// Handle registers a handler without parameters.
func Handle(ident string, fn func(ctx context.Context, user *model.User) (reply.Response, error)) Op {
	return Op{
		ident: ident,
		fn: func(ctx context.Context, user *model.User, _ []any) (reply.Response, error) {
			return fn(ctx, user)
		},
	}
}

func Handle1[A any](ident string, a Arg[A],
	fn func(ctx context.Context, user *model.User, a A) (reply.Response, error),
) Op {
	return Op{
		ident:  ident,
		params: []Param{a.param()},
		fn: func(ctx context.Context, user *model.User, args []any) (reply.Response, error) {
			return fn(ctx, user, args[0].(A))
		},
	}
}

func Handle2[A, B any](ident string, a Arg[A], b Arg[B],
	fn func(ctx context.Context, user *model.User, a A, b B) (reply.Response, error),
) Op {
	return Op{
		ident:  ident,
		params: []Param{a.param(), b.param()},
		fn: func(ctx context.Context, user *model.User, args []any) (reply.Response, error) {
			return fn(ctx, user, args[0].(A), args[1].(B))
		},
	}
}

func Handle3[A, B, C any](ident string, a Arg[A], b Arg[B], c Arg[C],
	fn func(ctx context.Context, user *model.User, a A, b B, c C) (reply.Response, error),
) Op {
	return Op{
		ident:  ident,
		params: []Param{a.param(), b.param(), c.param()},
		fn: func(ctx context.Context, user *model.User, args []any) (reply.Response, error) {
			return fn(ctx, user, args[0].(A), args[1].(B), args[2].(C))
		},
	}
}

// HandleArgs registers a handler over an explicit parameter list. The
// coerced values are int64, float64, bool or string according to each kind.
func HandleArgs(ident string, params []Param, fn HandlerFunc) Op {
	ps := make([]Param, len(params))
	for i, p := range params {
		if p.goType == "" {
			p.goType = p.Kind.String()
		}
		ps[i] = p
	}
	return Op{ident: ident, params: ps, fn: fn}
}
