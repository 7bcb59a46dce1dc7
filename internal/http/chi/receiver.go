package chi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-courier/delivery/signature"
	"github.com/marcelsud/webhook-courier/emitter"
)

/* HTTP layer DTOs for the receiver API
 * Separate from domain entities to avoid leaking internal structure
 */

// receiveResponse is the acknowledgment returned for an accepted webhook
type receiveResponse struct {
	Status    string `json:"status"`
	EventType string `json:"event_type,omitempty"`
	WebhookID string `json:"webhook_id,omitempty"`
}

// errorResponse carries a machine-readable failure reason
type errorResponse struct {
	Error string `json:"error"`
}

/* ReceiverHandlers sets up the webhook receiver routes
 * The receiver is the engine's counterpart: it verifies the signature
 * over the exact raw request bytes, then parses the envelope
 */
func ReceiverHandlers(secret string) *chi.Mux {
	logger := httplog.NewLogger("webhook-receiver", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Post("/webhook", receiveWebhook(secret).ServeHTTP)

	return r
}

// receiveWebhook handles POST /webhook
func receiveWebhook(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reading request body"})
			return
		}

		// Verify before parsing: the signature covers the raw bytes
		sig := r.Header.Get(signature.Header)
		if !signature.Verify(body, sig, secret) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
			return
		}

		var envelope emitter.Envelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
			return
		}

		oplog := httplog.LogEntry(r.Context())
		oplog.Info().
			Str("event_type", envelope.EventType).
			Str("webhook_id", r.Header.Get("X-Webhook-ID")).
			Msg("webhook received")

		writeJSON(w, http.StatusOK, receiveResponse{
			Status:    "received",
			EventType: envelope.EventType,
			WebhookID: r.Header.Get("X-Webhook-ID"),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
