package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/sirupsen/logrus"
)

// EquityLogHandler отдаёт журнал равноправия тендера.
type EquityLogHandler struct {
	base
	Service *services.EquityLogService
}

// NewEquityLogHandler создаёт новый экземпляр EquityLogHandler.
func NewEquityLogHandler(service *services.EquityLogService, actors *ActorResolver, logger *logrus.Entry, timeout time.Duration) *EquityLogHandler {
	return &EquityLogHandler{
		base:    base{Actors: actors, Logger: logger.WithField("component", "equity_log_handler"), Timeout: timeout},
		Service: service,
	}
}

// GetEquityLog обрабатывает запросы для получения журнала.
func (h *EquityLogHandler) GetEquityLog(w http.ResponseWriter, r *http.Request) {
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to fetch equity log", func(ctx context.Context, actor models.Actor) ([]models.EquityLogEntry, error) {
		return h.Service.List(ctx, tenderID, actor)
	})
}

// VerifyEquityLog обрабатывает запросы для проверки цепочки журнала.
func (h *EquityLogHandler) VerifyEquityLog(w http.ResponseWriter, r *http.Request) {
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to verify equity log", func(ctx context.Context, actor models.Actor) (services.ChainReport, error) {
		return h.Service.Verify(ctx, tenderID, actor)
	})
}
