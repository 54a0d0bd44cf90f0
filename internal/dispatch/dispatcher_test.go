package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dialog-bot/internal/model"
	"dialog-bot/internal/reply"
)

type recorder struct {
	calls int
	args  []any
}

func (r *recorder) ops() []Op {
	return []Op{
		Handle("Start", func(_ context.Context, u *model.User) (reply.Response, error) {
			r.calls++
			return reply.Text("Hello " + u.Name + "!"), nil
		}),
		Handle2("ShowItemAsync", Int("itemID"), String("color"),
			func(_ context.Context, _ *model.User, id int64, color string) (reply.Response, error) {
				r.calls++
				r.args = []any{id, color}
				return reply.Text("shown"), nil
			}).Describe("Shows an item"),
		Handle1("Roll", Float("maxSides"), func(_ context.Context, _ *model.User, sides float64) (reply.Response, error) {
			r.calls++
			r.args = []any{sides}
			return reply.Text("rolled"), nil
		}),
		Handle2("PickItemCallback", Int("itemID"), Enum("color", "red", "blue"),
			func(_ context.Context, _ *model.User, id int64, color string) (reply.Response, error) {
				r.calls++
				r.args = []any{id, color}
				return reply.EditLatest("picked", nil), nil
			}),
		Handle("DismissCallback", func(context.Context, *model.User) (reply.Response, error) {
			r.calls++
			return reply.EditLatestKeyboard(nil), nil
		}),
		Handle1("Toggle", Bool("enabled"), func(_ context.Context, _ *model.User, on bool) (reply.Response, error) {
			r.calls++
			r.args = []any{on}
			return reply.Text("toggled"), nil
		}),
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &recorder{}
	d, err := New(zap.New(core), rec.ops())
	require.NoError(t, err)
	return d, rec, logs
}

func testUser() *model.User {
	return model.NewUser(42, "Ada")
}

func TestHelpText(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "help", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.KindText, resp.Kind())

	lines := strings.Split(resp.Text(), "\n")
	assert.Equal(t, []string{
		"These are all available commands:",
		`/show\_item <item id> <color> - Shows an item`,
		"/roll <max sides>",
		"/toggle <enabled>",
		"/help - Shows this page",
	}, lines)
	assert.Equal(t, d.HelpText(), resp.Text())
}

func TestCommandsList(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	cmds := d.Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "start", cmds[0].Name)
	assert.Equal(t, Command{Name: "show_item", Params: []string{"item id", "color"}, Description: "Shows an item"}, cmds[1])
}

func TestHandleCommand(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "start", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", resp.Text())

	resp, err = d.HandleCommand(context.Background(), testUser(), "show_item", []string{"7", "red", "extra"})
	require.NoError(t, err)
	assert.Equal(t, "shown", resp.Text())
	assert.Equal(t, []any{int64(7), "red"}, rec.args)
	assert.Equal(t, 2, rec.calls)
}

func TestHandleCommandUnknown(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "nonexistent", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.KindText, resp.Kind())
	assert.Equal(t, unrecognizedText, resp.Text())
	assert.Zero(t, rec.calls)
}

func TestHandleCommandMissingArguments(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "show_item", []string{"7"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "requires _2 parameters_")
	assert.Zero(t, rec.calls)

	resp, err = d.HandleCommand(context.Background(), testUser(), "roll", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "requires _one parameter_")
	assert.Zero(t, rec.calls)
}

func TestHandleCommandInvalidArgument(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "show_item", []string{"seven", "red"})
	require.NoError(t, err)
	assert.Equal(t, "The parameter _item id_ is invalid. Use /help to learn more.", resp.Text())
	assert.Zero(t, rec.calls)

	resp, err = d.HandleCommand(context.Background(), testUser(), "roll", []string{"6.5"})
	require.NoError(t, err)
	assert.Equal(t, "rolled", resp.Text())
	assert.Equal(t, []any{6.5}, rec.args)
}

func TestHandleCommandBool(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	for raw, want := range map[string]bool{"true": true, "Yes": true, "off": false, "0": false} {
		_, err := d.HandleCommand(context.Background(), testUser(), "toggle", []string{raw})
		require.NoError(t, err)
		assert.Equal(t, []any{want}, rec.args, "raw %q", raw)
	}

	resp, err := d.HandleCommand(context.Background(), testUser(), "toggle", []string{"maybe"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "_enabled_ is invalid")
}

func TestHandleCommandPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	d, err := New(zap.NewNop(), []Op{
		Handle("Fail", func(context.Context, *model.User) (reply.Response, error) {
			return reply.Response{}, boom
		}),
	})
	require.NoError(t, err)

	_, err = d.HandleCommand(context.Background(), testUser(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestHandleCallback(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	for _, name := range []string{"pick_item", "PickItemCallback", "pick_item_callback"} {
		resp, err := d.HandleCallback(context.Background(), testUser(), name, []string{"7", "RED"})
		require.NoError(t, err)
		assert.Equal(t, reply.KindEdit, resp.Kind())
		assert.Equal(t, []any{int64(7), "red"}, rec.args)
	}

	resp, err := d.HandleCallback(context.Background(), testUser(), "dismiss", []string{})
	require.NoError(t, err)
	assert.Equal(t, reply.KindEdit, resp.Kind())
	assert.True(t, d.HasCallback("DismissCallback"))
}

func TestHandleCallbackUnknown(t *testing.T) {
	d, rec, logs := newTestDispatcher(t)

	resp, err := d.HandleCallback(context.Background(), testUser(), "nonexistent", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.KindNothing, resp.Kind())
	assert.Zero(t, rec.calls)
	assert.Equal(t, 1, logs.FilterMessage("Tried to invoke a non-existent callback").Len())
}

func TestCallbacksAreNotCommands(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	resp, err := d.HandleCommand(context.Background(), testUser(), "pick_item", []string{"1", "red"})
	require.NoError(t, err)
	assert.Equal(t, unrecognizedText, resp.Text())

	resp, err = d.HandleCallback(context.Background(), testUser(), "start", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.KindNothing, resp.Kind())
	assert.Zero(t, rec.calls)
}

func TestHandleCallbackBadArgumentsAreSilent(t *testing.T) {
	d, rec, logs := newTestDispatcher(t)

	resp, err := d.HandleCallback(context.Background(), testUser(), "pick_item", []string{"7", "green"})
	require.NoError(t, err)
	assert.Equal(t, reply.KindNothing, resp.Kind())

	resp, err = d.HandleCallback(context.Background(), testUser(), "pick_item", []string{"7"})
	require.NoError(t, err)
	assert.Equal(t, reply.KindNothing, resp.Kind())
	assert.Zero(t, rec.calls)

	entries := logs.FilterMessage("Failed to invoke callback").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "7;green", entries[0].ContextMap()["args"])
	assert.Contains(t, entries[0].ContextMap()["error"], "green")
}

func TestCoercionStopsAtFirstFailure(t *testing.T) {
	d, err := New(zap.NewNop(), []Op{
		Handle2("Pair", Int("first"), Int("second"),
			func(context.Context, *model.User, int64, int64) (reply.Response, error) {
				return reply.Text("ok"), nil
			}),
	})
	require.NoError(t, err)

	resp, err := d.HandleCommand(context.Background(), testUser(), "pair", []string{"x", "y"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "_first_")
	assert.NotContains(t, resp.Text(), "second")
}

func TestDuplicateNamesFail(t *testing.T) {
	noop := func(context.Context, *model.User) (reply.Response, error) { return reply.Nothing(), nil }

	_, err := New(zap.NewNop(), []Op{Handle("ShowItem", noop), Handle("ShowItemAsync", noop)})
	assert.ErrorIs(t, err, ErrDuplicateHandler)

	_, err = New(zap.NewNop(), []Op{Handle("Pick", noop), Handle("PickCallback", noop)})
	assert.NoError(t, err, "commands and callbacks live in separate registries")

	_, err = New(zap.NewNop(), []Op{Handle("Help", noop)})
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}

func TestUnsupportedParameterIsExcluded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d, err := New(zap.New(core), []Op{
		Handle1("Schedule", Arg[time.Time]{}, func(context.Context, *model.User, time.Time) (reply.Response, error) {
			return reply.Text("scheduled"), nil
		}),
		Handle1("Paint", Enum("color"), func(context.Context, *model.User, string) (reply.Response, error) {
			return reply.Text("painted"), nil
		}),
		Handle("Callback", func(context.Context, *model.User) (reply.Response, error) {
			return reply.Nothing(), nil
		}),
		Handle("Ping", func(context.Context, *model.User) (reply.Response, error) {
			return reply.Text("pong"), nil
		}),
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("Failed to register handler").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "Schedule", entries[0].ContextMap()["handler"])
	assert.Contains(t, entries[0].ContextMap()["error"], "time.Time")

	resp, err := d.HandleCommand(context.Background(), testUser(), "schedule", []string{"now"})
	require.NoError(t, err)
	assert.Equal(t, unrecognizedText, resp.Text())
	assert.NotContains(t, d.HelpText(), "schedule")
	assert.Contains(t, d.HelpText(), "/ping")
}

func TestFallbacks(t *testing.T) {
	var gotCommand, gotCallback string
	d, err := New(zap.NewNop(), nil,
		WithUnknownCommand(func(_ context.Context, _ *model.User, name string, _ []string) (reply.Response, error) {
			gotCommand = name
			return reply.Text("custom"), nil
		}),
		WithUnknownCallback(func(_ context.Context, _ *model.User, name string, _ []string) (reply.Response, error) {
			gotCallback = name
			return reply.DeleteLatest(), nil
		}),
	)
	require.NoError(t, err)

	resp, err := d.HandleCommand(context.Background(), testUser(), "whatever", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", resp.Text())
	assert.Equal(t, "whatever", gotCommand)

	resp, err = d.HandleCallback(context.Background(), testUser(), "OldButtonCallback", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.KindDeleteLatest, resp.Kind())
	assert.Equal(t, "old_button", gotCallback)

	assert.Equal(t, "These are all available commands:\n/help - Shows this page", d.HelpText())
}

func TestThreeParameters(t *testing.T) {
	var got []any
	move := Handle3("MoveItemAsync", Int("itemID"), Float("distance"), Enum("direction", "up", "down"),
		func(_ context.Context, _ *model.User, id int64, distance float64, direction string) (reply.Response, error) {
			got = []any{id, distance, direction}
			return reply.Text("moved"), nil
		})
	assert.Equal(t, "move_item", move.Name())

	d, err := New(zap.NewNop(), []Op{move})
	require.NoError(t, err)

	resp, err := d.HandleCommand(context.Background(), testUser(), "move_item", []string{"3", "1.5", "up"})
	require.NoError(t, err)
	assert.Equal(t, "moved", resp.Text())
	assert.Equal(t, []any{int64(3), 1.5, "up"}, got)

	got = nil
	resp, err = d.HandleCommand(context.Background(), testUser(), "move_item", []string{"3", "1.5", "sideways"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, resp.Text(), "_direction_")
}

func TestOpName(t *testing.T) {
	noop := func(context.Context, *model.User) (reply.Response, error) { return reply.Nothing(), nil }

	assert.Equal(t, "show_profile", Handle("ShowProfileAsync", noop).Name())
	assert.Equal(t, "pick_item", Handle("PickItemCallback", noop).Name())
	assert.Equal(t, "roll2", Handle("Roll2Async", noop).Name())
}

func TestHandleArgs(t *testing.T) {
	var got []any
	d, err := New(zap.NewNop(), []Op{
		HandleArgs("Set", []Param{{Name: "key", Kind: ParamString}, {Name: "value", Kind: ParamInt}},
			func(_ context.Context, _ *model.User, args []any) (reply.Response, error) {
				got = args
				return reply.Text("set"), nil
			}),
		HandleArgs("Broken", []Param{{Name: "key"}}, func(context.Context, *model.User, []any) (reply.Response, error) {
			return reply.Nothing(), nil
		}),
	})
	require.NoError(t, err)

	_, err = d.HandleCommand(context.Background(), testUser(), "set", []string{"limit", "10"})
	require.NoError(t, err)
	assert.Equal(t, []any{"limit", int64(10)}, got)

	resp, err := d.HandleCommand(context.Background(), testUser(), "broken", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, unrecognizedText, resp.Text())
}
