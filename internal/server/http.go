package server

import (
	"encoding/json"
	"net/http"

	"github.com/zeusync/scenesync/internal/core/observability/log"
)

type healthResponse struct {
	Status      string `json:"status"`
	Users       int    `json:"users"`
	ActiveUsers int    `json:"active_users"`
	Connections int    `json:"connections"`
	Nodes       int    `json:"nodes"`
	Pending     int    `json:"pending_operations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.GetStats()
	resp := healthResponse{
		Status:      "ok",
		Users:       stats.Users,
		ActiveUsers: stats.ActiveUsers,
		Connections: stats.Connections,
		Nodes:       stats.Nodes,
		Pending:     stats.Pending,
	}
	code := http.StatusOK
	if !stats.Running {
		resp.Status = "stopped"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("Health response failed", log.Error(err))
	}
}
