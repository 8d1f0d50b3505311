package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/sirupsen/logrus"
)

// PaymentPurpose - за что была оплата.
type PaymentPurpose string

// PaymentEventType - тип события платёжного шлюза.
type PaymentEventType string

const (
	TenderPublicationPayment PaymentPurpose = "tender_publication"
	OfferSubmissionPayment   PaymentPurpose = "offer_submission"

	CheckoutCompleted PaymentEventType = "checkout.session.completed"
	CheckoutExpired   PaymentEventType = "checkout.session.expired"
)

// PaymentMetadata - метаданные сессии оплаты.
type PaymentMetadata struct {
	Type           PaymentPurpose `json:"type"`
	TenderID       string         `json:"tenderId,omitempty"`
	OfferID        string         `json:"offerId,omitempty"`
	OrganizationID string         `json:"organizationId"`
}

// PaymentEvent - уже проверенное событие платёжного шлюза.
type PaymentEvent struct {
	Type     PaymentEventType `json:"type"`
	Metadata PaymentMetadata  `json:"metadata"`
}

// PaymentHook подтверждает или отменяет ожидающие оплаты публикацию и подачу.
// Переходы выполняются от имени системного актора, инварианты при этом действуют.
type PaymentHook struct {
	Tenders *TenderService
	Offers  *OfferService
	Logger  *logrus.Entry
}

// NewPaymentHook создаёт новый экземпляр PaymentHook.
func NewPaymentHook(tenders *TenderService, offers *OfferService, logger *logrus.Entry) *PaymentHook {
	return &PaymentHook{Tenders: tenders, Offers: offers, Logger: logger}
}

// Handle направляет событие в Confirm или Void.
func (h *PaymentHook) Handle(ctx context.Context, event PaymentEvent) error {
	logger := h.Logger.WithFields(logrus.Fields{
		"event":           event.Type,
		"purpose":         event.Metadata.Type,
		"tender_id":       event.Metadata.TenderID,
		"offer_id":        event.Metadata.OfferID,
		"organization_id": event.Metadata.OrganizationID,
	})
	var err error
	switch event.Type {
	case CheckoutCompleted:
		err = h.Confirm(ctx, event.Metadata)
	case CheckoutExpired:
		err = h.Void(ctx, event.Metadata)
	default:
		logger.Debug("ignoring payment event")
		return nil
	}
	if err != nil {
		logger.WithField("error", err.Error()).Warn("payment event was not applied")
		return err
	}
	logger.Info("payment event applied")
	return nil
}

// Confirm завершает оплаченную публикацию тендера или подачу предложения.
func (h *PaymentHook) Confirm(ctx context.Context, md PaymentMetadata) error {
	system := models.SystemActor()
	switch md.Type {
	case TenderPublicationPayment:
		if err := h.checkTenderOwner(ctx, md); err != nil {
			return err
		}
		_, err := h.Tenders.publish(ctx, md.TenderID, system, true)
		return err
	case OfferSubmissionPayment:
		if err := h.checkOfferOwner(ctx, md); err != nil {
			return err
		}
		_, err := h.Offers.submit(ctx, md.OfferID, system, true)
		return err
	}
	return unknownPurpose(md.Type)
}

// Void отменяет неоплаченную публикацию (черновик удаляется) или подачу
// (оплата помечается как неудавшаяся, черновик остаётся).
func (h *PaymentHook) Void(ctx context.Context, md PaymentMetadata) error {
	switch md.Type {
	case TenderPublicationPayment:
		if err := h.checkTenderOwner(ctx, md); err != nil {
			return err
		}
		return h.Tenders.deleteDraft(ctx, md.TenderID, models.SystemActor(), authz.DeleteTender, "publication payment expired", true)
	case OfferSubmissionPayment:
		if err := h.checkOfferOwner(ctx, md); err != nil {
			return err
		}
		_, err := h.Offers.markPaymentFailed(ctx, md.OfferID)
		return err
	}
	return unknownPurpose(md.Type)
}

func (h *PaymentHook) checkTenderOwner(ctx context.Context, md PaymentMetadata) error {
	if md.TenderID == "" {
		return models.NewErrorResponse(http.StatusBadRequest, "payment metadata is missing tenderId")
	}
	t, err := h.Tenders.Store.Repos().Tenders.GetTender(ctx, md.TenderID)
	if err != nil {
		return err
	}
	if md.OrganizationID != "" && md.OrganizationID != t.OrganizationID {
		return models.NewErrorResponse(http.StatusBadRequest, "payment organization does not own the tender")
	}
	return nil
}

func (h *PaymentHook) checkOfferOwner(ctx context.Context, md PaymentMetadata) error {
	if md.OfferID == "" {
		return models.NewErrorResponse(http.StatusBadRequest, "payment metadata is missing offerId")
	}
	o, err := h.Offers.Store.Repos().Offers.GetOffer(ctx, md.OfferID)
	if err != nil {
		return err
	}
	if md.OrganizationID != "" && md.OrganizationID != o.OrganizationID {
		return models.NewErrorResponse(http.StatusBadRequest, "payment organization does not own the offer")
	}
	return nil
}

func unknownPurpose(purpose PaymentPurpose) error {
	return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("unknown payment type: %s", purpose))
}
