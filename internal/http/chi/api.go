package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-courier/delivery"
)

// deliveryResponse represents a delivery record in the API
type deliveryResponse struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	MaxAttempts    int    `json:"max_attempts"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

func toDeliveryResponse(rec delivery.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             rec.ID,
		URL:            rec.URL,
		Status:         rec.Status.String(),
		Attempts:       rec.Attempts,
		MaxAttempts:    rec.MaxAttempts,
		ResponseStatus: rec.ResponseStatus,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      rec.CreatedAt.Unix(),
		UpdatedAt:      rec.UpdatedAt.Unix(),
	}
}

/* APIHandlers sets up the delivery engine API routes
 * Sends are synchronous: the response carries the terminal record
 */
func APIHandlers(client *delivery.Client) *chi.Mux {
	logger := httplog.NewLogger("webhook-courier-api", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/webhooks", postWebhook(client).ServeHTTP)
		r.Post("/webhooks/batch", postWebhookBatch(client).ServeHTTP)
		r.Get("/deliveries", getDeliveries(client).ServeHTTP)
		r.Get("/deliveries/{id}", getDelivery(client).ServeHTTP)
		r.Get("/stats", getStats(client).ServeHTTP)
	})

	return r
}

// postWebhook handles POST /v1/webhooks
func postWebhook(client *delivery.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var target delivery.Target
		if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}

		rec, err := client.Send(r.Context(), target)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, toDeliveryResponse(rec))
	})
}

// postWebhookBatch handles POST /v1/webhooks/batch
func postWebhookBatch(client *delivery.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var targets []delivery.Target
		if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		if len(targets) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "batch cannot be empty"})
			return
		}

		records, err := client.SendMultiple(r.Context(), targets)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		out := make([]deliveryResponse, len(records))
		for i, rec := range records {
			out[i] = toDeliveryResponse(rec)
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// getDelivery handles GET /v1/deliveries/:id
func getDelivery(client *delivery.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, found := client.GetDelivery(id)
		if !found {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "delivery not found: " + id})
			return
		}
		writeJSON(w, http.StatusOK, toDeliveryResponse(rec))
	})
}

// getDeliveries handles GET /v1/deliveries?status=
func getDeliveries(client *delivery.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var records []delivery.Delivery
		if status := r.URL.Query().Get("status"); status != "" {
			records = client.GetDeliveriesByStatus(delivery.NewStatus(status))
		} else {
			records = client.GetDeliveries()
		}

		out := make([]deliveryResponse, len(records))
		for i, rec := range records {
			out[i] = toDeliveryResponse(rec)
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// getStats handles GET /v1/stats
func getStats(client *delivery.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Stats     map[string]int `json:"stats"`
			Timestamp int64          `json:"timestamp"`
		}{
			Stats:     client.GetDeliveryStats(),
			Timestamp: time.Now().Unix(),
		})
	})
}
