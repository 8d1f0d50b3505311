package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/sirupsen/logrus"
)

// TenderHandler - структура для обработки HTTP-запросов по тендерам.
type TenderHandler struct {
	base
	Service *services.TenderService
}

// NewTenderHandler создаёт новый экземпляр TenderHandler.
func NewTenderHandler(service *services.TenderService, actors *ActorResolver, logger *logrus.Entry, timeout time.Duration) *TenderHandler {
	return &TenderHandler{
		base:    base{Actors: actors, Logger: logger.WithField("component", "tender_handler"), Timeout: timeout},
		Service: service,
	}
}

// GetTenders обрабатывает запросы для получения публичного списка тендеров.
func (h *TenderHandler) GetTenders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	categories := r.URL.Query()["category"]

	tenders, err := h.Service.FetchTenders(ctx, limit, offset, categories)
	if err != nil {
		h.fail(w, r, err, "failed to fetch tenders")
		return
	}
	h.respond(w, http.StatusOK, tenders)
}

// CreateTender обрабатывает запросы для создания тендера.
func (h *TenderHandler) CreateTender(w http.ResponseWriter, r *http.Request) {
	var req models.TenderRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err, "invalid request body")
		return
	}
	organizationID := r.PathValue("organizationId")
	act(h.base, w, r, http.StatusCreated, "failed to create tender", func(ctx context.Context, actor models.Actor) (models.Tender, error) {
		return h.Service.CreateTender(ctx, organizationID, actor, req)
	})
}

// GetOrganizationTenders обрабатывает запросы для получения тендеров организации.
func (h *TenderHandler) GetOrganizationTenders(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	organizationID := r.PathValue("organizationId")
	act(h.base, w, r, http.StatusOK, "failed to fetch tenders", func(ctx context.Context, actor models.Actor) ([]models.Tender, error) {
		return h.Service.GetOrganizationTenders(ctx, organizationID, actor, limit, offset)
	})
}

// GetTender обрабатывает запросы для получения тендера.
func (h *TenderHandler) GetTender(w http.ResponseWriter, r *http.Request) {
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to fetch tender", func(ctx context.Context, actor models.Actor) (models.Tender, error) {
		return h.Service.GetTender(ctx, tenderID, actor)
	})
}

// EditTender обрабатывает запросы для редактирования черновика.
func (h *TenderHandler) EditTender(w http.ResponseWriter, r *http.Request) {
	var req models.TenderRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err, "invalid request body")
		return
	}
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to edit tender", func(ctx context.Context, actor models.Actor) (models.Tender, error) {
		return h.Service.EditDraft(ctx, tenderID, actor, req)
	})
}

// DeleteTender обрабатывает запросы для удаления черновика.
func (h *TenderHandler) DeleteTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteDraft(ctx, r.PathValue("tenderId"), actor); err != nil {
		h.fail(w, r, err, "failed to delete tender")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPayment обрабатывает запросы на оплату публикации.
func (h *TenderHandler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to request payment", h.Service.RequestPublicationPayment)
}

// PublishTender обрабатывает запросы для публикации тендера.
func (h *TenderHandler) PublishTender(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to publish tender", h.Service.Publish)
}

// CloseTender обрабатывает запросы для закрытия тендера.
func (h *TenderHandler) CloseTender(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to close tender", h.Service.Close)
}

// CancelTender обрабатывает запросы для отмены тендера.
func (h *TenderHandler) CancelTender(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to cancel tender", h.Service.Cancel)
}

// RevealIdentities обрабатывает запросы для раскрытия участников.
func (h *TenderHandler) RevealIdentities(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to reveal identities", h.Service.RevealIdentities)
}

type awardRequest struct {
	OfferID string `json:"offerId"`
}

// AwardTender обрабатывает запросы для присуждения тендера.
func (h *TenderHandler) AwardTender(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err, "invalid request body")
		return
	}
	if req.OfferID == "" {
		h.fail(w, r, models.NewErrorResponse(http.StatusBadRequest, "offerId is required"), "invalid request body")
		return
	}
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to award tender", func(ctx context.Context, actor models.Actor) (models.Tender, error) {
		return h.Service.Award(ctx, tenderID, actor, req.OfferID)
	})
}

func (h *TenderHandler) transition(w http.ResponseWriter, r *http.Request, fallback string, fn func(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error)) {
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, fallback, func(ctx context.Context, actor models.Actor) (models.Tender, error) {
		return fn(ctx, tenderID, actor)
	})
}
