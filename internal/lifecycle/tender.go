package lifecycle

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
)

// DefaultCurrency подставляется, если валюта не указана.
const DefaultCurrency = "CHF"

// ValidateTenderRequest проверяет поля тендера.
func ValidateTenderRequest(req models.TenderRequest, now time.Time) error {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Category) == "" {
		return models.NewErrorResponse(http.StatusBadRequest, "missing required fields: title, description or category")
	}
	if req.Deadline.IsZero() {
		return models.NewErrorResponse(http.StatusBadRequest, "deadline is required")
	}
	if !req.Deadline.After(now) {
		return models.NewErrorResponse(http.StatusBadRequest, "deadline must be in the future")
	}
	switch req.Mode {
	case models.ClassicMode, models.AnonymousMode:
	default:
		return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid disclosure mode: %s", req.Mode))
	}
	switch req.Visibility {
	case models.PublicTender, models.PrivateTender:
	default:
		return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid visibility: %s", req.Visibility))
	}
	if req.Budget != nil && !req.Budget.IsPositive() {
		return models.NewErrorResponse(http.StatusBadRequest, "budget must be positive")
	}
	return nil
}

// NewTender создаёт черновик тендера.
func NewTender(id, organizationID string, actor models.Actor, req models.TenderRequest, now time.Time) (TenderTransition, error) {
	if err := ValidateTenderRequest(req, now); err != nil {
		return TenderTransition{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	t := models.Tender{
		ID:             id,
		OrganizationID: organizationID,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.TrimSpace(req.Category),
		Budget:         req.Budget,
		Currency:       currency,
		Deadline:       req.Deadline.UTC(),
		Mode:           req.Mode,
		Visibility:     req.Visibility,
		Status:         models.DraftTender,
		PaymentStatus:  models.PaymentNone,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return TenderTransition{
		Tender: t,
		Log: LogIntent{
			Action:      models.TenderCreatedAction,
			Description: fmt.Sprintf("Tender %q created", t.Title),
			Metadata: map[string]string{
				"mode":       string(t.Mode),
				"visibility": string(t.Visibility),
				"deadline":   t.Deadline.Format(time.RFC3339),
			},
		},
	}, nil
}

// EditDraft применяет изменения к черновику. Опубликованный тендер неизменяем.
func EditDraft(t models.Tender, req models.TenderRequest, now time.Time) (models.Tender, error) {
	if t.Status != models.DraftTender {
		return models.Tender{}, models.ErrInvalidTransition.WithMessage("only draft tenders can be edited")
	}
	merged := models.TenderRequest{
		Title:       firstNonEmpty(req.Title, t.Title),
		Description: firstNonEmpty(req.Description, t.Description),
		Category:    firstNonEmpty(req.Category, t.Category),
		Budget:      t.Budget,
		Currency:    firstNonEmpty(req.Currency, t.Currency),
		Deadline:    t.Deadline,
		Mode:        t.Mode,
		Visibility:  t.Visibility,
	}
	if req.Budget != nil {
		merged.Budget = req.Budget
	}
	if !req.Deadline.IsZero() {
		merged.Deadline = req.Deadline.UTC()
	}
	if req.Mode != "" {
		merged.Mode = req.Mode
	}
	if req.Visibility != "" {
		merged.Visibility = req.Visibility
	}
	if err := ValidateTenderRequest(merged, now); err != nil {
		return models.Tender{}, err
	}

	t.Title = strings.TrimSpace(merged.Title)
	t.Description = strings.TrimSpace(merged.Description)
	t.Category = strings.TrimSpace(merged.Category)
	t.Budget = merged.Budget
	t.Currency = strings.ToUpper(strings.TrimSpace(merged.Currency))
	t.Deadline = merged.Deadline
	t.Mode = merged.Mode
	t.Visibility = merged.Visibility
	t.UpdatedAt = now
	return t, nil
}

// DeleteDraft разрешает удаление только черновика.
func DeleteDraft(t models.Tender, reason string) (LogIntent, error) {
	if t.Status != models.DraftTender {
		return LogIntent{}, models.ErrInvalidTransition.WithMessage("only draft tenders can be deleted")
	}
	return LogIntent{
		Action:      models.TenderDeletedAction,
		Description: fmt.Sprintf("Draft tender %q deleted", t.Title),
		Metadata:    map[string]string{"reason": reason},
	}, nil
}

// MarkPublicationPending помечает черновик как ожидающий оплаты публикации.
func MarkPublicationPending(t models.Tender, now time.Time) (models.Tender, error) {
	if t.Status != models.DraftTender {
		return models.Tender{}, models.ErrInvalidTransition.WithMessage("only draft tenders can await publication payment")
	}
	if t.PaymentStatus == models.PaymentPaid {
		return models.Tender{}, models.ErrInvalidTransition.WithMessage("tender publication is already paid")
	}
	t.PaymentStatus = models.PaymentPending
	t.UpdatedAt = now
	return t, nil
}

// Publish публикует черновик.
func Publish(t models.Tender, actor models.Actor, now time.Time) (TenderTransition, error) {
	if !CanMoveTender(t.Status, models.PublishedTender) {
		return TenderTransition{}, tenderTransitionError(t, models.PublishedTender)
	}
	if !now.Before(t.Deadline) {
		return TenderTransition{}, models.ErrWindowClosed.WithMessage("tender deadline has passed, update it before publishing")
	}
	t.Status = models.PublishedTender
	t.PublishedAt = &now
	t.UpdatedAt = now

	n := models.Notification{
		Type:     models.TenderPublishedNotification,
		Title:    "Tender published",
		Message:  fmt.Sprintf("Tender %q is now published and accepts offers until %s.", t.Title, t.Deadline.Format(time.RFC3339)),
		Metadata: map[string]string{"tenderId": t.ID},
	}
	return TenderTransition{
		Tender: t,
		Log: LogIntent{
			Action:      models.TenderPublishedAction,
			Description: fmt.Sprintf("Tender %q published", t.Title),
			Metadata:    map[string]string{"publishedAt": now.Format(time.RFC3339Nano)},
		},
		Notifications: []models.NotificationIntent{
			inApp(t.OrganizationID, actor.UserID, n),
			email(t.OrganizationID, n),
		},
	}, nil
}

// MatchNotifications строит уведомления TENDER_MATCH для организаций с подходящим сохранённым поиском.
func MatchNotifications(t models.Tender, organizationIDs []string) []models.NotificationIntent {
	intents := make([]models.NotificationIntent, 0, len(organizationIDs))
	for _, orgID := range organizationIDs {
		if orgID == t.OrganizationID {
			continue
		}
		intents = append(intents, inApp(orgID, "", models.Notification{
			Type:     models.TenderMatchNotification,
			Title:    "New tender matches your search",
			Message:  fmt.Sprintf("Tender %q in %s has been published.", t.Title, t.Category),
			Metadata: map[string]string{"tenderId": t.ID, "category": t.Category},
		}))
	}
	return intents
}

// ClosingEarly сообщает, закрывается ли тендер до дедлайна.
func ClosingEarly(t models.Tender, now time.Time) bool {
	return !now.After(t.Deadline)
}

// Close закрывает приём предложений.
func Close(t models.Tender, offerCount int, now time.Time) (TenderTransition, error) {
	if !CanMoveTender(t.Status, models.ClosedTender) {
		return TenderTransition{}, tenderTransitionError(t, models.ClosedTender)
	}
	early := ClosingEarly(t, now)
	t.Status = models.ClosedTender
	t.ClosedAt = &now
	t.UpdatedAt = now
	return TenderTransition{
		Tender: t,
		Log: LogIntent{
			Action:      models.TenderClosedAction,
			Description: fmt.Sprintf("Tender %q closed", t.Title),
			Metadata: map[string]string{
				"early":      strconv.FormatBool(early),
				"offerCount": strconv.Itoa(offerCount),
			},
		},
	}, nil
}

// Award присуждает тендер принятому предложению. others - остальные поданные
// предложения, их участники получают уведомление об исходе.
func Award(t models.Tender, winner models.Offer, winnerOrg models.Organization, others []models.Offer, actor models.Actor, now time.Time) (AwardTransition, error) {
	if !CanMoveTender(t.Status, models.AwardedTender) {
		return AwardTransition{}, tenderTransitionError(t, models.AwardedTender)
	}
	if winner.TenderID != t.ID {
		return AwardTransition{}, models.ErrOfferNotFound.WithMessage("winning offer does not belong to this tender")
	}
	if winner.Status != models.AcceptedOffer {
		return AwardTransition{}, models.ErrInvalidTransition.WithMessage("winning offer must be accepted before the tender is awarded")
	}

	revealedNow := false
	if t.Mode == models.AnonymousMode && !t.IdentityRevealed {
		// Присуждение - явное раскрытие уполномоченным актором.
		t.IdentityRevealed = true
		revealedNow = true
	}
	t.Status = models.AwardedTender
	t.AwardedOfferID = winner.ID
	t.UpdatedAt = now

	winner.Status = models.AwardedOffer
	winner.UpdatedAt = now

	meta := map[string]string{"tenderId": t.ID, "offerId": winner.ID}
	winnerMsg := models.Notification{
		Type:     models.TenderAwardedNotification,
		Title:    "Your offer won",
		Message:  fmt.Sprintf("Your offer for tender %q has been awarded.", t.Title),
		Metadata: meta,
	}
	emitterMsg := models.Notification{
		Type:     models.TenderAwardedNotification,
		Title:    "Tender awarded",
		Message:  fmt.Sprintf("Tender %q has been awarded to %s.", t.Title, winnerOrg.Name),
		Metadata: map[string]string{"tenderId": t.ID, "offerId": winner.ID, "winnerOrganizationId": winnerOrg.ID},
	}
	intents := []models.NotificationIntent{
		inApp(winner.OrganizationID, "", winnerMsg),
		email(winner.OrganizationID, winnerMsg),
		inApp(t.OrganizationID, actor.UserID, emitterMsg),
	}
	for _, o := range others {
		if o.ID == winner.ID || o.OrganizationID == winner.OrganizationID {
			continue
		}
		switch o.Status {
		case models.SubmittedOffer, models.ShortlistedOffer, models.AcceptedOffer:
		default:
			continue
		}
		loserMsg := models.Notification{
			Type:     models.TenderAwardedNotification,
			Title:    "Tender awarded",
			Message:  fmt.Sprintf("Tender %q has been awarded to another offer.", t.Title),
			Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
		}
		intents = append(intents, inApp(o.OrganizationID, "", loserMsg), email(o.OrganizationID, loserMsg))
	}

	return AwardTransition{
		Tender: t,
		Winner: winner,
		Log: LogIntent{
			Action:      models.TenderAwardedAction,
			Description: fmt.Sprintf("Tender %q awarded to %s", t.Title, winnerOrg.Name),
			Metadata: map[string]string{
				"winningOfferId":       winner.ID,
				"winnerOrganizationId": winnerOrg.ID,
				"identityRevealed":     strconv.FormatBool(revealedNow),
			},
		},
		Notifications: intents,
	}, nil
}

// Cancel отменяет черновик или опубликованный тендер.
func Cancel(t models.Tender, offers []models.Offer, now time.Time) (TenderTransition, error) {
	if !CanMoveTender(t.Status, models.CancelledTender) {
		return TenderTransition{}, tenderTransitionError(t, models.CancelledTender)
	}
	previous := t.Status
	t.Status = models.CancelledTender
	t.UpdatedAt = now

	var intents []models.NotificationIntent
	notified := make(map[string]bool)
	for _, o := range offers {
		switch o.Status {
		case models.SubmittedOffer, models.ShortlistedOffer, models.AcceptedOffer:
		default:
			continue
		}
		if notified[o.OrganizationID] {
			continue
		}
		notified[o.OrganizationID] = true
		intents = append(intents, inApp(o.OrganizationID, "", models.Notification{
			Type:     models.TenderCancelledNotification,
			Title:    "Tender cancelled",
			Message:  fmt.Sprintf("Tender %q you submitted an offer for has been cancelled.", t.Title),
			Metadata: map[string]string{"tenderId": t.ID, "offerId": o.ID},
		}))
	}
	return TenderTransition{
		Tender: t,
		Log: LogIntent{
			Action:      models.TenderCancelledAction,
			Description: fmt.Sprintf("Tender %q cancelled", t.Title),
			Metadata: map[string]string{
				"previousStatus":  string(previous),
				"notifiedBidders": strconv.Itoa(len(notified)),
			},
		},
		Notifications: intents,
	}, nil
}

// RevealIdentities раскрывает участников анонимного тендера после дедлайна.
func RevealIdentities(t models.Tender, now time.Time) (TenderTransition, error) {
	if t.Mode != models.AnonymousMode {
		return TenderTransition{}, models.ErrInvalidTransition.WithMessage("identities can only be revealed on anonymous tenders")
	}
	if !now.After(t.Deadline) {
		return TenderTransition{}, models.ErrDeadlineNotReached
	}
	if t.IdentityRevealed {
		return TenderTransition{}, models.ErrInvalidTransition.WithMessage("identities are already revealed")
	}
	t.IdentityRevealed = true
	t.UpdatedAt = now
	return TenderTransition{
		Tender: t,
		Log: LogIntent{
			Action:      models.IdentityRevealedAction,
			Description: fmt.Sprintf("Bidder identities revealed for tender %q", t.Title),
			Metadata:    map[string]string{"revealedAt": now.Format(time.RFC3339Nano)},
		},
	}, nil
}

// Visible сообщает, может ли актор видеть тендер. Черновик видит только заказчик,
// приватный тендер не попадает в публичный список, но доступен по идентификатору.
func Visible(t models.Tender, viewer models.Actor) bool {
	if viewer.System || viewer.BelongsTo(t.OrganizationID) {
		return true
	}
	return t.Status != models.DraftTender
}

func firstNonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
