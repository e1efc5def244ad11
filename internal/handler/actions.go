package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/model"
	"github.com/t77yq/self-healing/internal/storage"
)

const (
	defaultActionsLimit = 50
	maxActionsLimit     = 1000
)

type actionsResponse struct {
	Source  string      `json:"source"`
	Count   int         `json:"count"`
	Actions interface{} `json:"actions"`
}

// listActions returns GET /actions?limit=N&alert=NAME&status=OUTCOME, newest first
func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	limit := defaultActionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxActionsLimit)
	}

	filter := storage.HistoryFilter{
		AlertName: r.URL.Query().Get("alert"),
		Status:    model.Outcome(r.URL.Query().Get("status")),
	}

	if h.history != nil {
		records, err := h.history.List(r.Context(), filter, 0, limit)
		if err != nil {
			h.logger.Error("Failed to list healing history", zap.Error(err))
			jsonErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		jsonResp(w, http.StatusOK, actionsResponse{Source: "history", Count: len(records), Actions: records})
		return
	}

	// Filtering the file requires scanning all of it.
	tailLimit := limit
	if filter != (storage.HistoryFilter{}) {
		tailLimit = 0
	}

	actions, err := h.actions.Tail(tailLimit)
	if err != nil {
		h.logger.Error("Failed to read healing actions log", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	matched := make([]*model.HealingAction, 0, len(actions))
	for _, action := range actions {
		if filter.AlertName != "" && action.AlertName != filter.AlertName {
			continue
		}
		if filter.Status != "" && action.Status != filter.Status {
			continue
		}
		matched = append(matched, action)
		if len(matched) == limit {
			break
		}
	}

	jsonResp(w, http.StatusOK, actionsResponse{Source: "log", Count: len(matched), Actions: matched})
}
