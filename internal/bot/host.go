// Package bot hosts a Conversation on Telegram: it turns updates into
// dispatcher calls, applies the resulting responses and keeps each user's
// reply state between turns.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dialog-bot/internal/keyboard"
	"dialog-bot/internal/metrics"
	"dialog-bot/internal/model"
	"dialog-bot/internal/reply"
	"dialog-bot/internal/storage"
)

const DefaultApologyText = "An internal error occurred. Please try again later."

// Conversation is the application logic a Host drives. *dispatch.Dispatcher
// provides the command and callback halves.
type Conversation interface {
	HandleCommand(ctx context.Context, user *model.User, name string, args []string) (reply.Response, error)
	HandleCallback(ctx context.Context, user *model.User, name string, args []string) (reply.Response, error)
	HandleMessage(ctx context.Context, user *model.User, text string) (reply.Response, error)
}

// Messenger is what the host needs from the chat platform.
type Messenger interface {
	reply.Messenger
	AnswerCallback(ctx context.Context, callbackID string) error
	NotifyOwner(ctx context.Context, text string) error
}

type turnKind int

const (
	turnCommand turnKind = iota
	turnMessage
	turnCallback
)

func (k turnKind) String() string {
	switch k {
	case turnCommand:
		return "command"
	case turnMessage:
		return "message"
	case turnCallback:
		return "callback"
	default:
		return "unknown"
	}
}

const (
	stageStore    = "store"
	stageDispatch = "dispatch"
	stageReply    = "reply"
	stagePersist  = "persist"
	stagePanic    = "panic"
)

// turn is one inbound update reduced to what the host acts on.
type turn struct {
	kind      turnKind
	chatID    int64
	userName  string
	requestID int

	// command or callback name and its raw arguments
	name string
	args []string
	text string

	callbackID string
	pressed    reply.State

	slot *turnSlot
	log  *zap.Logger
}

// Host runs turns: load the user, dispatch, apply the response, persist.
type Host struct {
	messenger Messenger
	store     storage.Store
	dialog    Conversation
	logger    *zap.Logger
	metrics   *metrics.Metrics
	turns     *turnQueue
	apology   string
}

type HostOption func(*Host)

func WithMetrics(m *metrics.Metrics) HostOption {
	return func(h *Host) { h.metrics = m }
}

// WithApologyText sets the text sent to a chat whose turn failed.
func WithApologyText(text string) HostOption {
	return func(h *Host) {
		if text != "" {
			h.apology = text
		}
	}
}

func NewHost(messenger Messenger, store storage.Store, dialog Conversation, logger *zap.Logger, opts ...HostOption) *Host {
	h := &Host{
		messenger: messenger,
		store:     store,
		dialog:    dialog,
		logger:    logger,
		turns:     newTurnQueue(),
		apology:   DefaultApologyText,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNop()
	}
	return h
}

// HandleUpdate processes one update to completion. Turns of the same chat
// run one at a time, in the order HandleUpdate was called. Failures are
// reported to the owner before being returned.
func (h *Host) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	t := h.accept(ctx, update)
	if t == nil {
		return nil
	}
	return h.run(ctx, t)
}

// accept classifies update and reserves its place in the chat's queue.
// It returns nil for updates the host does not act on.
func (h *Host) accept(ctx context.Context, update tgbotapi.Update) *turn {
	t, ok := parseUpdate(update)
	if !ok {
		h.metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		if cb := update.CallbackQuery; cb != nil {
			h.answerCallback(ctx, cb.ID)
		}
		return nil
	}

	h.metrics.UpdatesTotal.WithLabelValues(t.kind.String()).Inc()
	t.slot = h.turns.reserve(t.chatID)
	return t
}

func (h *Host) run(ctx context.Context, t *turn) (err error) {
	defer h.turns.release(t.chatID, t.slot)

	if err := t.slot.wait(ctx); err != nil {
		return fmt.Errorf("wait for turn in chat %d: %w", t.chatID, err)
	}

	t.log = h.logger.With(
		zap.String("turn_id", uuid.NewString()),
		zap.Int64("chat_id", t.chatID),
		zap.String("kind", t.kind.String()))

	h.metrics.TurnsInFlight.Inc()
	start := time.Now()
	stage := ""

	defer func() {
		if r := recover(); r != nil {
			stage = stagePanic
			err = fmt.Errorf("panic: %v", r)
		}
		h.metrics.TurnsInFlight.Dec()
		h.metrics.TurnDuration.WithLabelValues(t.kind.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			h.reportFailure(ctx, t, stage, err)
		}
	}()

	stage, err = h.play(ctx, t)
	return err
}

// play is a single turn against the store. On failure it names the stage
// that failed.
func (h *Host) play(ctx context.Context, t *turn) (string, error) {
	if t.kind == turnCallback {
		answered := false
		answer := func() {
			if !answered {
				answered = true
				h.answerCallback(ctx, t.callbackID)
			}
		}
		defer answer()
		return h.playCallback(ctx, t, answer)
	}
	return h.playMessage(ctx, t)
}

func (h *Host) playMessage(ctx context.Context, t *turn) (string, error) {
	tx := h.store.Begin()
	user, err := tx.GetOrCreate(ctx, t.chatID, t.userName)
	if err != nil {
		return stageStore, fmt.Errorf("load user %d: %w", t.chatID, err)
	}

	var resp reply.Response
	if t.kind == turnCommand {
		t.log.Debug("Handling command",
			zap.String("command", t.name),
			zap.Strings("args", t.args))
		resp, err = h.dialog.HandleCommand(ctx, user, t.name, t.args)
	} else {
		t.log.Debug("Handling message")
		resp, err = h.dialog.HandleMessage(ctx, user, t.text)
	}
	if err != nil {
		return stageDispatch, fmt.Errorf("handle %s: %w", t.kind, err)
	}

	return h.finish(ctx, tx, user, t, resp)
}

func (h *Host) playCallback(ctx context.Context, t *turn, answer func()) (string, error) {
	tx := h.store.Begin()
	user, err := tx.GetOrCreate(ctx, t.chatID, t.userName)
	if err != nil {
		return stageStore, fmt.Errorf("load user %d: %w", t.chatID, err)
	}

	// Edits in this turn target the message whose button was pressed.
	user.LastReply = t.pressed

	t.log.Debug("Handling callback",
		zap.String("callback", t.name),
		zap.Strings("args", t.args))

	resp, err := h.dialog.HandleCallback(ctx, user, t.name, t.args)
	answer()
	if err != nil {
		return stageDispatch, fmt.Errorf("handle callback %s: %w", t.name, err)
	}

	return h.finish(ctx, tx, user, t, resp)
}

// finish applies resp and persists the user. The state reached by a
// partially applied response is persisted too, since it reflects the chat.
func (h *Host) finish(ctx context.Context, tx storage.Tx, user *model.User, t *turn, resp reply.Response) (string, error) {
	st, applyErr := resp.Apply(ctx, h.messenger, t.chatID, user.LastReply, t.requestID)
	user.LastReply = st
	h.metrics.RepliesTotal.WithLabelValues(resp.Kind().String()).Inc()

	if err := tx.Persist(ctx); err != nil {
		return stagePersist, errors.Join(applyErr, fmt.Errorf("persist user %d: %w", t.chatID, err))
	}
	if applyErr != nil {
		return stageReply, fmt.Errorf("apply %s: %w", resp.Kind(), applyErr)
	}
	return "", nil
}

// reportFailure tells the owner what went wrong and apologizes to the
// chat. Callback turns get no apology; the pressed message stays as is.
func (h *Host) reportFailure(ctx context.Context, t *turn, stage string, err error) {
	ctx = context.WithoutCancel(ctx)

	h.metrics.ErrorsTotal.WithLabelValues(stage).Inc()
	t.log.Error("Turn failed",
		zap.String("stage", stage),
		zap.Error(err))

	if nerr := h.messenger.NotifyOwner(ctx, err.Error()); nerr != nil {
		t.log.Warn("Failed to notify owner", zap.Error(nerr))
	}

	if t.kind == turnCallback {
		return
	}
	if _, serr := h.messenger.SendText(ctx, t.chatID, h.apology, nil, false); serr != nil {
		t.log.Warn("Failed to send apology", zap.Error(serr))
	}
}

func (h *Host) answerCallback(ctx context.Context, callbackID string) {
	if err := h.messenger.AnswerCallback(context.WithoutCancel(ctx), callbackID); err != nil {
		h.logger.Warn("Failed to answer callback",
			zap.String("callback_id", callbackID),
			zap.Error(err))
	}
}

func parseUpdate(update tgbotapi.Update) (*turn, bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil {
			return nil, false
		}
		chatID := cb.Message.Chat.ID
		name, args := keyboard.DecodePayload(cb.Data)
		return &turn{
			kind:       turnCallback,
			chatID:     chatID,
			userName:   displayName(cb.From),
			requestID:  cb.Message.MessageID,
			name:       name,
			args:       args,
			callbackID: cb.ID,
			pressed: reply.State{
				ChatID:      chatID,
				MessageID:   cb.Message.MessageID,
				HasKeyboard: cb.Message.ReplyMarkup != nil,
			},
		}, true

	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || msg.Text == "" {
			return nil, false
		}
		t := &turn{
			chatID:    msg.Chat.ID,
			userName:  displayName(msg.From),
			requestID: msg.MessageID,
		}
		if strings.HasPrefix(msg.Text, "/") {
			t.kind = turnCommand
			t.name, t.args = parseCommand(msg.Text)
		} else {
			t.kind = turnMessage
			t.text = msg.Text
		}
		return t, true
	}
	return nil, false
}

// parseCommand splits "/name@bot arg1 arg2" into its name and arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", []string{}
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, fields[1:]
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return u.FirstName
}
