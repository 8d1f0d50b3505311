package handlers

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// PingHandler отвечает на проверку доступности сервиса.
type PingHandler struct {
	base
}

// NewPingHandler создаёт новый экземпляр PingHandler.
func NewPingHandler(logger *logrus.Entry) *PingHandler {
	return &PingHandler{base: base{Logger: logger.WithField("component", "ping_handler")}}
}

// Ping обрабатывает GET запрос к /api/ping
func (h *PingHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "ok"); err != nil {
		h.Logger.WithField("error", err.Error()).Warn("failed to write ping response")
	}
}
