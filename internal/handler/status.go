package handler

import (
	"net/http"
	"time"

	"github.com/t77yq/self-healing/internal/config"
	"github.com/t77yq/self-healing/internal/executor"
	"github.com/t77yq/self-healing/internal/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

type statusResponse struct {
	Service      string                         `json:"service"`
	Timestamp    string                         `json:"timestamp"`
	Remediations int                            `json:"remediations"`
	Mapping      []config.Remediation           `json:"mapping"`
	Running      []*executor.RunningRemediation `json:"running"`
	Host         *model.HostStats               `json:"host"`
}

// health returns GET /health. It has no dependencies and always succeeds.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(model.TimestampFormat),
		Service:   h.service,
	})
}

// status returns GET /status with the mapping, in-flight runs and host snapshot
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Service:   h.service,
		Timestamp: time.Now().Format(model.TimestampFormat),
		Mapping:   []config.Remediation{},
		Running:   []*executor.RunningRemediation{},
	}

	if h.table != nil {
		resp.Remediations = h.table.Len()
		resp.Mapping = h.table.Entries()
	}
	if h.running != nil {
		if running := h.running.GetRunning(); running != nil {
			resp.Running = running
		}
	}
	if h.host != nil {
		resp.Host = h.host.Latest()
	}

	jsonResp(w, http.StatusOK, resp)
}
