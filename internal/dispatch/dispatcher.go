// Package dispatch routes slash commands and button callbacks to the
// handlers a conversation registers, coercing text arguments on the way.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dialog-bot/internal/model"
	"dialog-bot/internal/naming"
	"dialog-bot/internal/reply"
)

const (
	helpCommand  = "help"
	startCommand = "start"

	helpHeader = "These are all available commands:"
	helpFooter = "/help - Shows this page"

	unrecognizedText = "Unrecognized command. You can use /help to show all available commands."
)

var (
	errEmptyName = errors.New("handler name is empty")
	errNoHandler = errors.New("handler function is nil")
)

// FallbackFunc handles a command or callback no handler is registered for.
type FallbackFunc func(ctx context.Context, user *model.User, name string, args []string) (reply.Response, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithUnknownCommand replaces the fixed "unrecognized command" reply.
func WithUnknownCommand(fn FallbackFunc) Option {
	return func(d *Dispatcher) { d.unknownCommand = fn }
}

// WithUnknownCallback is called for unmatched callbacks instead of replying
// with Nothing. The miss is logged either way.
func WithUnknownCallback(fn FallbackFunc) Option {
	return func(d *Dispatcher) { d.unknownCallback = fn }
}

// Command is a registered command as listed in /help.
type Command struct {
	Name        string
	Params      []string
	Description string
}

// Dispatcher holds the command and callback registries. They are built once
// by New and only read afterwards, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	logger    *zap.Logger
	commands  map[string]*descriptor
	callbacks map[string]*descriptor
	order     []*descriptor
	helpText  string

	unknownCommand  FallbackFunc
	unknownCallback FallbackFunc
}

// New registers ops. An op whose name is empty or whose parameter has no
// text coercion is logged and left out. Two ops that normalize to the same
// name in the same registry make New fail.
func New(logger *zap.Logger, ops []Op, opts ...Option) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger:    logger,
		commands:  make(map[string]*descriptor),
		callbacks: make(map[string]*descriptor),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, op := range ops {
		desc, err := newDescriptor(op)
		if err != nil {
			logger.Error("Failed to register handler",
				zap.String("handler", op.ident),
				zap.Error(err))
			continue
		}

		registry, kind := d.commands, "command"
		if desc.callback {
			registry, kind = d.callbacks, "callback"
		}
		if prev, exists := registry[desc.name]; exists {
			return nil, fmt.Errorf("%w: %s %q registered by %q and %q",
				ErrDuplicateHandler, kind, desc.name, prev.ident, op.ident)
		}
		if !desc.callback && desc.name == helpCommand {
			return nil, fmt.Errorf("%w: command %q is built in", ErrDuplicateHandler, helpCommand)
		}
		registry[desc.name] = desc
		if !desc.callback {
			d.order = append(d.order, desc)
		}

		logger.Debug("Registered handler",
			zap.String("kind", kind),
			zap.String("name", desc.name),
			zap.Int("params", len(desc.params)))
	}

	d.helpText = d.buildHelp()
	return d, nil
}

func (d *Dispatcher) buildHelp() string {
	var b strings.Builder
	b.WriteString(helpHeader)
	b.WriteString("\n")
	for _, desc := range d.order {
		if desc.name == startCommand {
			continue
		}
		b.WriteString(desc.helpLine())
		b.WriteString("\n")
	}
	b.WriteString(helpFooter)
	return b.String()
}

// HelpText returns the text /help replies with.
func (d *Dispatcher) HelpText() string {
	return d.helpText
}

// Commands lists registered commands in registration order.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.order))
	for _, desc := range d.order {
		out = append(out, Command{
			Name:        desc.name,
			Params:      append([]string(nil), desc.paramNames...),
			Description: desc.description,
		})
	}
	return out
}

// HasCallback reports whether a callback handler is registered under the
// normalized form of name.
func (d *Dispatcher) HasCallback(name string) bool {
	name, _ = naming.Classify(name)
	_, ok := d.callbacks[name]
	return ok
}

// HandleCommand runs the command name typed by user. Unknown commands and
// bad arguments produce a user-visible Text reply, never an error; errors
// come only from the handler itself.
func (d *Dispatcher) HandleCommand(ctx context.Context, user *model.User, name string, args []string) (reply.Response, error) {
	if name == helpCommand {
		return reply.Text(d.helpText), nil
	}
	desc, ok := d.commands[name]
	if !ok {
		if d.unknownCommand != nil {
			return d.unknownCommand(ctx, user, name, args)
		}
		return reply.Text(unrecognizedText), nil
	}

	values, err := desc.bind(args)
	if err != nil {
		return reply.Text(argumentErrorText(err)), nil
	}
	return desc.fn(ctx, user, values)
}

// HandleCallback runs the callback name carried by a pressed button. Misses
// and bad arguments are logged and answered with Nothing, since the raw
// payload is not something the user typed.
func (d *Dispatcher) HandleCallback(ctx context.Context, user *model.User, name string, args []string) (reply.Response, error) {
	normalized, _ := naming.Classify(name)
	desc, ok := d.callbacks[normalized]
	if !ok {
		d.logger.Warn("Tried to invoke a non-existent callback",
			zap.String("callback", normalized),
			zap.Int64("chat_id", chatID(user)))
		if d.unknownCallback != nil {
			return d.unknownCallback(ctx, user, normalized, args)
		}
		return reply.Nothing(), nil
	}

	values, err := desc.bind(args)
	if err != nil {
		d.logger.Warn("Failed to invoke callback",
			zap.String("callback", desc.name),
			zap.String("reason", argumentErrorText(err)),
			zap.Error(err),
			zap.String("args", strings.Join(args, ";")))
		return reply.Nothing(), nil
	}
	return desc.fn(ctx, user, values)
}

func argumentErrorText(err error) string {
	var arity *ArityError
	if errors.As(err, &arity) {
		if arity.Required == 1 {
			return "This command requires _one parameter_. Use /help to learn more."
		}
		return fmt.Sprintf("This command requires _%d parameters_. Use /help to learn more.", arity.Required)
	}
	var bad *ArgumentError
	if errors.As(err, &bad) {
		return fmt.Sprintf("The parameter _%s_ is invalid. Use /help to learn more.", bad.Param)
	}
	return "Invalid parameters. Use /help to learn more."
}

func chatID(user *model.User) int64 {
	if user == nil {
		return 0
	}
	return user.ChatID
}
