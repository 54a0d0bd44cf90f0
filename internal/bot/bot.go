package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"dialog-bot/internal/config"
	"dialog-bot/internal/dispatch"
	"dialog-bot/internal/metrics"
	"dialog-bot/internal/storage"
)

var allowedUpdates = []string{"message", "callback_query"}

// Receiver is the subset of *tgbotapi.BotAPI used to receive updates and
// manage the webhook.
type Receiver interface {
	API
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// CommandLister is implemented by conversations that can publish their
// command list to the client's menu.
type CommandLister interface {
	Commands() []dispatch.Command
}

// Bot receives Telegram updates, by long polling or by webhook, and feeds
// them to a Host.
type Bot struct {
	api      Receiver
	host     *Host
	dialog   Conversation
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	sem      *semaphore.Weighted
	limit    int64
}

func New(
	cfg *config.Config,
	dialog Conversation,
	store storage.Store,
	logger *zap.Logger,
) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	botAPI.Debug = cfg.Debug

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	return NewWithAPI(botAPI, cfg, dialog, store, logger), nil
}

// NewWithAPI assembles a Bot around an already authorized API client.
func NewWithAPI(
	api Receiver,
	cfg *config.Config,
	dialog Conversation,
	store storage.Store,
	logger *zap.Logger,
) *Bot {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	limit := cfg.MaxConcurrentUpdates
	if limit <= 0 {
		limit = 1
	}

	messenger := NewTelegramMessenger(api, cfg.OwnerID)
	host := NewHost(messenger, store, dialog, logger,
		WithMetrics(m),
		WithApologyText(cfg.ApologyText))

	return &Bot{
		api:      api,
		host:     host,
		dialog:   dialog,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		registry: registry,
		sem:      semaphore.NewWeighted(limit),
		limit:    limit,
	}
}

// Start receives updates until ctx is done, then waits for in-flight turns.
func (b *Bot) Start(ctx context.Context) error {
	b.publishCommands()

	if b.cfg.WebhookMode() {
		return b.startWebhook(ctx)
	}
	return b.startPolling(ctx)
}

func (b *Bot) startPolling(ctx context.Context) error {
	b.logger.Info("Starting bot", zap.String("mode", "polling"))

	// A leftover webhook makes getUpdates fail.
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	u.AllowedUpdates = allowedUpdates
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			return b.drain()

		case update, ok := <-updates:
			if !ok {
				return b.drain()
			}
			if err := b.sem.Acquire(ctx, 1); err != nil {
				continue
			}
			t := b.host.accept(ctx, update)
			if t == nil {
				b.sem.Release(1)
				continue
			}
			go func() {
				defer b.sem.Release(1)
				// Turns outlive ctx so shutdown does not cut replies in half.
				if err := b.host.run(context.WithoutCancel(ctx), t); err != nil {
					b.logger.Debug("Update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
				}
			}()
		}
	}
}

func (b *Bot) startWebhook(ctx context.Context) error {
	b.logger.Info("Starting bot", zap.String("mode", "webhook"))

	wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	wh.AllowedUpdates = allowedUpdates

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	<-ctx.Done()
	b.logger.Info("Shutting down bot")
	return b.drain()
}

// drain waits for in-flight turns, at most ShutdownTimeout.
func (b *Bot) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ShutdownTimeout)
	defer cancel()

	if err := b.sem.Acquire(ctx, b.limit); err != nil {
		return fmt.Errorf("in-flight turns did not finish: %w", err)
	}
	b.sem.Release(b.limit)
	return nil
}

func (b *Bot) publishCommands() {
	lister, ok := b.dialog.(CommandLister)
	if !ok {
		return
	}

	var commands []tgbotapi.BotCommand
	for _, c := range lister.Commands() {
		description := c.Description
		if description == "" {
			description = "Runs /" + c.Name
		}
		commands = append(commands, tgbotapi.BotCommand{
			Command:     c.Name,
			Description: description,
		})
	}
	commands = append(commands, tgbotapi.BotCommand{Command: "help", Description: "Shows all available commands"})

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.logger.Warn("Failed to publish commands", zap.Error(err))
	}
}

// WebhookInfo is the delivery status Telegram reports for the webhook.
type WebhookInfo struct {
	PendingUpdates   int       `json:"pending_updates"`
	LastErrorDate    time.Time `json:"last_error_date,omitempty"`
	LastErrorMessage string    `json:"last_error_message,omitempty"`
}

func (b *Bot) webhookInfo() (*WebhookInfo, error) {
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook info: %w", err)
	}

	out := &WebhookInfo{
		PendingUpdates:   info.PendingUpdateCount,
		LastErrorMessage: info.LastErrorMessage,
	}
	if info.LastErrorDate > 0 {
		out.LastErrorDate = time.Unix(int64(info.LastErrorDate), 0)
	}
	return out, nil
}
