// Package dialog holds the bot's conversation logic.
package dialog

import (
	"context"
	"fmt"
	"math/rand"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dialog-bot/internal/dispatch"
	"dialog-bot/internal/keyboard"
	"dialog-bot/internal/model"
	"dialog-bot/internal/reply"
)

const (
	StateQuiet = "quiet"
	StateLoud  = "loud"
)

var items = []struct {
	ID    int64
	Label string
}{
	{ID: 1, Label: "Apple"},
	{ID: 2, Label: "Kite"},
	{ID: 3, Label: "Lamp"},
}

var colors = []string{"red", "blue"}

// Hello is a small demo conversation: greeting, echo, dice and an inline
// keyboard round trip.
type Hello struct {
	*dispatch.Dispatcher
	logger *zap.Logger

	// button targets
	pickItem dispatch.Op
	dismiss  dispatch.Op
}

func NewHello(logger *zap.Logger) (*Hello, error) {
	h := &Hello{logger: logger}
	h.pickItem = dispatch.Handle2("PickItemCallback", dispatch.Int("itemID"), dispatch.Enum("color", colors...), h.PickItemCallback)
	h.dismiss = dispatch.Handle("DismissCallback", h.DismissCallback)

	d, err := dispatch.New(logger, h.ops())
	if err != nil {
		return nil, fmt.Errorf("register hello dialog: %w", err)
	}
	h.Dispatcher = d
	return h, nil
}

func (h *Hello) ops() []dispatch.Op {
	return []dispatch.Op{
		dispatch.Handle("Start", h.Start),
		dispatch.Handle1("Echo", dispatch.String("word"), h.Echo).
			Describe("Repeats a word"),
		dispatch.Handle1("Roll", dispatch.Int("sides"), h.Roll).
			Describe("Rolls a die"),
		dispatch.Handle("Pick", h.Pick).
			Describe("Shows items to choose from"),
		dispatch.Handle1("Mode", dispatch.Enum("mode", StateQuiet, StateLoud), h.Mode).
			Describe("Switches notifications for replies"),
		dispatch.Handle("Forget", h.Forget).
			Describe("Removes your request and my last reply"),
		h.pickItem,
		h.dismiss,
	}
}

func (h *Hello) Start(_ context.Context, user *model.User) (reply.Response, error) {
	return reply.Text(fmt.Sprintf("Hello %s!", escape(user.Name))), nil
}

func (h *Hello) Echo(_ context.Context, user *model.User, word string) (reply.Response, error) {
	return h.text(user, escape(word)), nil
}

func (h *Hello) Roll(_ context.Context, user *model.User, sides int64) (reply.Response, error) {
	if sides < 1 {
		return reply.Text("A die needs at least one side."), nil
	}
	return h.text(user, fmt.Sprintf("You rolled %d.", rand.Int63n(sides)+1)), nil
}

func (h *Hello) Pick(_ context.Context, _ *model.User) (reply.Response, error) {
	kb := keyboard.NewBuilder()
	for _, item := range items {
		for _, color := range colors {
			kb.AddCallback(item.Label+" ("+color+")", h.pickItem.Name(), item.ID, color)
		}
		kb.Newline()
	}
	kb.AddCallback("Never mind", h.dismiss.Name())
	return reply.TextWithKeyboard("What would you like?", kb.Build()), nil
}

func (h *Hello) Mode(_ context.Context, user *model.User, mode string) (reply.Response, error) {
	user.State = mode
	return reply.Text("Replies are now " + mode + "."), nil
}

func (h *Hello) Forget(context.Context, *model.User) (reply.Response, error) {
	return reply.Combine(reply.DeleteLastRequest(), reply.DeleteLatest()), nil
}

func (h *Hello) PickItemCallback(_ context.Context, user *model.User, id int64, color string) (reply.Response, error) {
	for _, item := range items {
		if item.ID == id {
			h.logger.Debug("Item picked",
				zap.Int64("chat_id", user.ChatID),
				zap.Int64("item_id", id),
				zap.String("color", color))
			return reply.EditLatest(fmt.Sprintf("You picked the %s %s.", color, item.Label), nil), nil
		}
	}
	return reply.Nothing(), nil
}

func (h *Hello) DismissCallback(context.Context, *model.User) (reply.Response, error) {
	return reply.EditLatest("Maybe next time.", nil), nil
}

// HandleMessage answers free text.
func (h *Hello) HandleMessage(_ context.Context, user *model.User, text string) (reply.Response, error) {
	return h.text(user, "You said:\n"+escape(text)), nil
}

func (h *Hello) text(user *model.User, text string) reply.Response {
	r := reply.Text(text)
	if user.State == StateQuiet {
		return r.Silent()
	}
	return r
}

// escape keeps user supplied text from being parsed as Markdown.
func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}
