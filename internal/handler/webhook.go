package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/model"
)

const maxWebhookBytes = 10 << 20

type webhookResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	AlertsProcessed int    `json:"alerts_processed"`
}

// webhook handles POST /webhook. The request completes only after every
// remediation triggered by the batch has finished.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonErr(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		h.logger.Error("No JSON data received")
		jsonErr(w, http.StatusBadRequest, "No JSON data")
		return
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		h.logger.Error("Invalid JSON received", zap.Error(err))
		jsonErr(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if isEmptyJSON(raw) {
		h.logger.Error("No JSON data received")
		jsonErr(w, http.StatusBadRequest, "No JSON data")
		return
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		h.internalError(w, fmt.Errorf("webhook payload must be a JSON object, got %T", raw))
		return
	}

	var msg model.WebhookMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.internalError(w, fmt.Errorf("failed to decode webhook payload: %w", err))
		return
	}

	processed, err := h.dispatcher.Handle(r.Context(), &msg)
	if err != nil {
		h.internalError(w, err)
		return
	}

	jsonResp(w, http.StatusOK, webhookResponse{
		Status:          "success",
		Message:         "Webhook processed successfully",
		AlertsProcessed: processed,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("Error processing webhook", zap.Error(err))
	jsonErr(w, http.StatusInternalServerError, err.Error())
}

// isEmptyJSON reports whether a decoded document carries no data:
// null, false, zero, an empty string, an empty array or an empty object.
func isEmptyJSON(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}
