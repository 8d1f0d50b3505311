package lifecycle

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/tender-platform/internal/anonymity"
	"github.com/senyabanana/tender-platform/internal/models"
)

// CheckSelfBid проверяет, что организация не подаёт предложение на собственный тендер.
func CheckSelfBid(t models.Tender, organizationID string) error {
	if t.OrganizationID == organizationID {
		return models.ErrSelfBidProhibited
	}
	return nil
}

// CheckWindow проверяет, что дедлайн тендера не прошёл. Граница включительна:
// предложение в момент дедлайна ещё принимается.
func CheckWindow(t models.Tender, now time.Time) error {
	if now.After(t.Deadline) {
		return models.ErrWindowClosed
	}
	return nil
}

func validateOfferRequest(req models.OfferRequest) error {
	if !req.Price.IsPositive() {
		return models.NewErrorResponse(http.StatusBadRequest, "price must be a positive amount")
	}
	for _, doc := range req.Documents {
		if strings.TrimSpace(doc) == "" {
			return models.NewErrorResponse(http.StatusBadRequest, "document references must not be empty")
		}
	}
	return nil
}

// CheckDraftable проверяет, что организация может готовить предложение на тендер.
func CheckDraftable(t models.Tender, organizationID string, now time.Time) error {
	if err := CheckSelfBid(t, organizationID); err != nil {
		return err
	}
	if err := CheckWindow(t, now); err != nil {
		return err
	}
	if t.Status != models.PublishedTender {
		return models.ErrInvalidTransition.WithMessage(fmt.Sprintf("tender in status %s does not accept offers", t.Status))
	}
	return nil
}

// NewDraft создаёт черновик предложения.
func NewDraft(id string, t models.Tender, organizationID string, actor models.Actor, req models.OfferRequest, now time.Time) (models.Offer, error) {
	if err := CheckDraftable(t, organizationID, now); err != nil {
		return models.Offer{}, err
	}
	if err := validateOfferRequest(req); err != nil {
		return models.Offer{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = t.Currency
	}
	documents := req.Documents
	if documents == nil {
		documents = []string{}
	}
	return models.Offer{
		ID:             id,
		TenderID:       t.ID,
		OrganizationID: organizationID,
		Price:          req.Price,
		Currency:       currency,
		Description:    strings.TrimSpace(req.Description),
		Conditions:     strings.TrimSpace(req.Conditions),
		Documents:      documents,
		Status:         models.DraftOffer,
		PaymentStatus:  models.PaymentNone,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// UpdateDraft обновляет поля черновика.
func UpdateDraft(o models.Offer, t models.Tender, req models.OfferRequest, now time.Time) (models.Offer, error) {
	if o.Status != models.DraftOffer {
		return models.Offer{}, models.ErrInvalidTransition.WithMessage("only draft offers can be edited")
	}
	if err := CheckDraftable(t, o.OrganizationID, now); err != nil {
		return models.Offer{}, err
	}
	if err := validateOfferRequest(req); err != nil {
		return models.Offer{}, err
	}
	if c := strings.ToUpper(strings.TrimSpace(req.Currency)); c != "" {
		o.Currency = c
	}
	o.Price = req.Price
	o.Description = strings.TrimSpace(req.Description)
	o.Conditions = strings.TrimSpace(req.Conditions)
	o.Documents = req.Documents
	if o.Documents == nil {
		o.Documents = []string{}
	}
	o.UpdatedAt = now
	return o, nil
}

// DeleteOfferDraft разрешает удаление только черновика предложения.
func DeleteOfferDraft(o models.Offer) error {
	if o.Status != models.DraftOffer {
		return models.ErrInvalidTransition.WithMessage("only draft offers can be deleted, withdraw submitted offers instead")
	}
	return nil
}

// MarkSubmissionPending помечает черновик как ожидающий оплаты подачи.
func MarkSubmissionPending(o models.Offer, t models.Tender, now time.Time) (models.Offer, error) {
	if o.Status != models.DraftOffer {
		return models.Offer{}, models.ErrInvalidTransition.WithMessage("only draft offers can await submission payment")
	}
	if err := CheckWindow(t, now); err != nil {
		return models.Offer{}, err
	}
	o.PaymentStatus = models.PaymentPending
	o.UpdatedAt = now
	return o, nil
}

// Submit подаёт черновик. Окно проверяется первым, независимо от статусов.
func Submit(t models.Tender, o models.Offer, bidder models.Organization, actor models.Actor, anonymousID string, now time.Time) (OfferTransition, error) {
	if err := CheckWindow(t, now); err != nil {
		return OfferTransition{}, err
	}
	if err := CheckSelfBid(t, o.OrganizationID); err != nil {
		return OfferTransition{}, err
	}
	if !CanMoveOffer(o.Status, models.SubmittedOffer) {
		return OfferTransition{}, offerTransitionError(o, models.SubmittedOffer)
	}
	if t.Status != models.PublishedTender {
		return OfferTransition{}, models.ErrInvalidTransition.WithMessage(fmt.Sprintf("tender in status %s does not accept offers", t.Status))
	}

	o.Status = models.SubmittedOffer
	o.SubmittedAt = &now
	o.UpdatedAt = now
	if t.Mode == models.AnonymousMode && o.AnonymousID == "" {
		o.AnonymousID = anonymousID
	}

	displayName := bidder.Name
	if !anonymity.CanReveal(t, now) {
		displayName = o.AnonymousID
	}
	meta := map[string]string{"tenderId": t.ID, "offerId": o.ID}
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferReceivedAction,
			Description: fmt.Sprintf("Offer received from %s", displayName),
			Metadata: map[string]string{
				"offerId":     o.ID,
				"anonymousId": o.AnonymousID,
				"price":       o.Price.String(),
				"currency":    o.Currency,
			},
		},
		Notifications: []models.NotificationIntent{
			email(o.OrganizationID, models.Notification{
				Type:     models.OfferReceivedNotification,
				Title:    "Offer submitted",
				Message:  fmt.Sprintf("Your offer for tender %q has been submitted.", t.Title),
				Metadata: meta,
			}),
			inApp(t.OrganizationID, "", models.Notification{
				Type:     models.OfferReceivedNotification,
				Title:    "New offer received",
				Message:  fmt.Sprintf("%s submitted an offer for tender %q.", displayName, t.Title),
				Metadata: meta,
			}),
		},
	}, nil
}

func checkReviewable(t models.Tender) error {
	if t.Status != models.PublishedTender && t.Status != models.ClosedTender {
		return models.ErrInvalidTransition.WithMessage(fmt.Sprintf("offers of a tender in status %s cannot be reviewed", t.Status))
	}
	return nil
}

// Shortlist переводит предложение в короткий список. Участник уведомляется,
// только если его личность уже может быть раскрыта.
func Shortlist(t models.Tender, o models.Offer, now time.Time) (OfferTransition, error) {
	if o.Status != models.SubmittedOffer {
		return OfferTransition{}, offerTransitionError(o, models.ShortlistedOffer)
	}
	if err := checkReviewable(t); err != nil {
		return OfferTransition{}, err
	}
	o.Status = models.ShortlistedOffer
	o.UpdatedAt = now

	var intents []models.NotificationIntent
	if anonymity.CanReveal(t, now) {
		intents = append(intents, inApp(o.OrganizationID, "", models.Notification{
			Type:     models.OfferShortlistedNotification,
			Title:    "Offer shortlisted",
			Message:  fmt.Sprintf("Your offer for tender %q has been shortlisted.", t.Title),
			Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
		}))
	}
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferShortlistedAction,
			Description: fmt.Sprintf("Offer %s shortlisted", displayID(t, o, now)),
			Metadata:    map[string]string{"offerId": o.ID},
		},
		Notifications: intents,
	}, nil
}

// Unshortlist возвращает предложение из короткого списка в поданные.
func Unshortlist(t models.Tender, o models.Offer, now time.Time) (OfferTransition, error) {
	if o.Status != models.ShortlistedOffer {
		return OfferTransition{}, offerTransitionError(o, models.SubmittedOffer)
	}
	if err := checkReviewable(t); err != nil {
		return OfferTransition{}, err
	}
	o.Status = models.SubmittedOffer
	o.UpdatedAt = now
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferUnshortlistedAction,
			Description: fmt.Sprintf("Offer %s removed from shortlist", displayID(t, o, now)),
			Metadata:    map[string]string{"offerId": o.ID},
		},
	}, nil
}

// Reject отклоняет поданное предложение.
func Reject(t models.Tender, o models.Offer, now time.Time) (OfferTransition, error) {
	if o.Status != models.SubmittedOffer && o.Status != models.ShortlistedOffer {
		return OfferTransition{}, offerTransitionError(o, models.RejectedOffer)
	}
	if err := checkReviewable(t); err != nil {
		return OfferTransition{}, err
	}
	previous := o.Status
	o.Status = models.RejectedOffer
	o.UpdatedAt = now

	n := models.Notification{
		Type:     models.OfferRejectedNotification,
		Title:    "Offer rejected",
		Message:  fmt.Sprintf("Your offer for tender %q has been rejected.", t.Title),
		Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
	}
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferRejectedAction,
			Description: fmt.Sprintf("Offer %s rejected", displayID(t, o, now)),
			Metadata:    map[string]string{"offerId": o.ID, "previousStatus": string(previous)},
		},
		Notifications: []models.NotificationIntent{
			inApp(o.OrganizationID, "", n),
			email(o.OrganizationID, n),
		},
	}, nil
}

// Accept помечает предложение как принятое. Это не конечный статус:
// предложение становится победителем только при присуждении тендера.
func Accept(t models.Tender, o models.Offer, now time.Time) (OfferTransition, error) {
	if o.Status != models.SubmittedOffer && o.Status != models.ShortlistedOffer {
		return OfferTransition{}, offerTransitionError(o, models.AcceptedOffer)
	}
	if err := checkReviewable(t); err != nil {
		return OfferTransition{}, err
	}
	previous := o.Status
	o.Status = models.AcceptedOffer
	o.UpdatedAt = now

	var intents []models.NotificationIntent
	if anonymity.CanReveal(t, now) {
		intents = append(intents, inApp(o.OrganizationID, "", models.Notification{
			Type:     models.OfferAcceptedNotification,
			Title:    "Offer accepted",
			Message:  fmt.Sprintf("Your offer for tender %q has been accepted and awaits the award.", t.Title),
			Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
		}))
	}
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferAcceptedAction,
			Description: fmt.Sprintf("Offer %s accepted", displayID(t, o, now)),
			Metadata:    map[string]string{"offerId": o.ID, "previousStatus": string(previous)},
		},
		Notifications: intents,
	}, nil
}

// Withdraw отзывает предложение по инициативе участника.
func Withdraw(t models.Tender, o models.Offer, now time.Time) (OfferTransition, error) {
	if o.Status != models.SubmittedOffer && o.Status != models.ShortlistedOffer {
		return OfferTransition{}, offerTransitionError(o, models.WithdrawnOffer)
	}
	if t.Status.Terminal() {
		return OfferTransition{}, models.ErrInvalidTransition.WithMessage(fmt.Sprintf("offers of a tender in status %s cannot be withdrawn", t.Status))
	}
	previous := o.Status
	o.Status = models.WithdrawnOffer
	o.UpdatedAt = now
	return OfferTransition{
		Offer: o,
		Log: LogIntent{
			Action:      models.OfferWithdrawnAction,
			Description: fmt.Sprintf("Offer %s withdrawn", displayID(t, o, now)),
			Metadata:    map[string]string{"offerId": o.ID, "previousStatus": string(previous)},
		},
		Notifications: []models.NotificationIntent{
			inApp(t.OrganizationID, "", models.Notification{
				Type:     models.OfferWithdrawnNotification,
				Title:    "Offer withdrawn",
				Message:  fmt.Sprintf("Offer %s for tender %q has been withdrawn.", displayID(t, o, now), t.Title),
				Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
			}),
		},
	}, nil
}

// displayID - идентификатор предложения для журнала, не раскрывающий участника раньше времени.
func displayID(t models.Tender, o models.Offer, now time.Time) string {
	if o.AnonymousID != "" && !anonymity.CanReveal(t, now) {
		return o.AnonymousID
	}
	return o.ID
}
