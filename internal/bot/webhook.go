package bot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router serves health and metrics, plus the webhook endpoints when the bot
// runs in webhook mode.
func (b *Bot) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))

	if b.cfg.WebhookMode() {
		r.Route("/api/bot", func(r chi.Router) {
			r.Post("/", b.handleWebhook)
			r.Get("/", b.handleWebhookInfo)
		})
	}
	return r
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.metrics.WebhookRequests.WithLabelValues("bad_request").Inc()
		b.logger.Warn("Rejected webhook request", zap.Error(err))
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	if err := b.sem.Acquire(r.Context(), 1); err != nil {
		b.metrics.WebhookRequests.WithLabelValues("unavailable").Inc()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.sem.Release(1)

	// Failures were reported by the host already. Telegram would only
	// redeliver the update, so it is acknowledged either way.
	if err := b.host.HandleUpdate(context.WithoutCancel(r.Context()), *update); err != nil {
		b.logger.Debug("Update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}

	b.metrics.WebhookRequests.WithLabelValues("ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func (b *Bot) handleWebhookInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := b.webhookInfo()
	if err != nil {
		b.logger.Error("Failed to get webhook info", zap.Error(err))
		http.Error(w, "webhook info unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		b.logger.Warn("Failed to write webhook info", zap.Error(err))
	}
}
