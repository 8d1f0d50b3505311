package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/sirupsen/logrus"
)

// OfferHandler - структура для обработки HTTP-запросов по предложениям.
type OfferHandler struct {
	base
	Service *services.OfferService
}

// NewOfferHandler создаёт новый экземпляр OfferHandler.
func NewOfferHandler(service *services.OfferService, actors *ActorResolver, logger *logrus.Entry, timeout time.Duration) *OfferHandler {
	return &OfferHandler{
		base:    base{Actors: actors, Logger: logger.WithField("component", "offer_handler"), Timeout: timeout},
		Service: service,
	}
}

type saveDraftRequest struct {
	OrganizationID string `json:"organizationId"`
	models.OfferRequest
}

// SaveDraft обрабатывает запросы для создания или обновления черновика предложения.
func (h *OfferHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err, "invalid request body")
		return
	}
	if req.OrganizationID == "" {
		h.fail(w, r, models.NewErrorResponse(http.StatusBadRequest, "organizationId is required"), "invalid request body")
		return
	}
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to save offer", func(ctx context.Context, actor models.Actor) (models.Offer, error) {
		return h.Service.SaveDraft(ctx, tenderID, req.OrganizationID, actor, req.OfferRequest)
	})
}

// GetTenderOffers обрабатывает запросы для получения предложений тендера.
func (h *OfferHandler) GetTenderOffers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	tenderID := r.PathValue("tenderId")
	act(h.base, w, r, http.StatusOK, "failed to fetch offers", func(ctx context.Context, actor models.Actor) ([]models.OfferView, error) {
		return h.Service.GetTenderOffers(ctx, tenderID, actor, limit, offset)
	})
}

// GetOrganizationOffers обрабатывает запросы для получения предложений организации.
func (h *OfferHandler) GetOrganizationOffers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	organizationID := r.PathValue("organizationId")
	act(h.base, w, r, http.StatusOK, "failed to fetch offers", func(ctx context.Context, actor models.Actor) ([]models.OfferView, error) {
		return h.Service.GetOrganizationOffers(ctx, organizationID, actor, limit, offset)
	})
}

// GetOffer обрабатывает запросы для получения предложения.
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerID := r.PathValue("offerId")
	act(h.base, w, r, http.StatusOK, "failed to fetch offer", func(ctx context.Context, actor models.Actor) (models.OfferView, error) {
		return h.Service.GetOffer(ctx, offerID, actor)
	})
}

// DeleteOffer обрабатывает запросы для удаления черновика предложения.
func (h *OfferHandler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteDraft(ctx, r.PathValue("offerId"), actor); err != nil {
		h.fail(w, r, err, "failed to delete offer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPayment обрабатывает запросы на оплату подачи.
func (h *OfferHandler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to request payment", h.Service.RequestSubmissionPayment)
}

// SubmitOffer обрабатывает запросы для подачи предложения.
func (h *OfferHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to submit offer", h.Service.Submit)
}

// ShortlistOffer обрабатывает запросы для включения в короткий список.
func (h *OfferHandler) ShortlistOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to shortlist offer", h.Service.Shortlist)
}

// UnshortlistOffer обрабатывает запросы для исключения из короткого списка.
func (h *OfferHandler) UnshortlistOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to unshortlist offer", h.Service.Unshortlist)
}

// RejectOffer обрабатывает запросы для отклонения предложения.
func (h *OfferHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to reject offer", h.Service.Reject)
}

// AcceptOffer обрабатывает запросы для принятия предложения.
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to accept offer", h.Service.Accept)
}

// WithdrawOffer обрабатывает запросы для отзыва предложения.
func (h *OfferHandler) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to withdraw offer", h.Service.Withdraw)
}

func (h *OfferHandler) transition(w http.ResponseWriter, r *http.Request, fallback string, fn func(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error)) {
	offerID := r.PathValue("offerId")
	act(h.base, w, r, http.StatusOK, fallback, func(ctx context.Context, actor models.Actor) (models.Offer, error) {
		return fn(ctx, offerID, actor)
	})
}
