package lifecycle

import (
	"fmt"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/utils"
)

// LogIntent - запись журнала, которую внешний слой должен добавить в той же транзакции.
type LogIntent struct {
	Action      models.EquityAction
	Description string
	Metadata    map[string]string
}

// TenderTransition - результат решения по тендеру: новое состояние и намерения.
type TenderTransition struct {
	Tender        models.Tender
	Log           LogIntent
	Notifications []models.NotificationIntent
}

// OfferTransition - результат решения по предложению.
type OfferTransition struct {
	Offer         models.Offer
	Log           LogIntent
	Notifications []models.NotificationIntent
}

// AwardTransition - присуждение меняет и тендер, и предложение-победителя.
type AwardTransition struct {
	Tender        models.Tender
	Winner        models.Offer
	Log           LogIntent
	Notifications []models.NotificationIntent
}

var allowedTenderTransitions = map[models.TenderStatus][]models.TenderStatus{
	models.DraftTender:     {models.PublishedTender, models.CancelledTender},
	models.PublishedTender: {models.ClosedTender, models.AwardedTender, models.CancelledTender},
	models.ClosedTender:    {models.AwardedTender},
	models.AwardedTender:   {},
	models.CancelledTender: {},
}

var allowedOfferTransitions = map[models.OfferStatus][]models.OfferStatus{
	models.DraftOffer:       {models.SubmittedOffer},
	models.SubmittedOffer:   {models.ShortlistedOffer, models.RejectedOffer, models.AcceptedOffer, models.WithdrawnOffer},
	models.ShortlistedOffer: {models.SubmittedOffer, models.RejectedOffer, models.AcceptedOffer, models.WithdrawnOffer},
	models.AcceptedOffer:    {models.AwardedOffer},
	models.RejectedOffer:    {},
	models.AwardedOffer:     {},
	models.WithdrawnOffer:   {},
}

// CanMoveTender сообщает, допустим ли переход тендера.
func CanMoveTender(from, to models.TenderStatus) bool {
	return utils.Contains(allowedTenderTransitions[from], to)
}

// CanMoveOffer сообщает, допустим ли переход предложения.
func CanMoveOffer(from, to models.OfferStatus) bool {
	return utils.Contains(allowedOfferTransitions[from], to)
}

func tenderTransitionError(t models.Tender, to models.TenderStatus) error {
	return models.ErrInvalidTransition.WithMessage(fmt.Sprintf("tender in status %s cannot become %s", t.Status, to))
}

func offerTransitionError(o models.Offer, to models.OfferStatus) error {
	return models.ErrInvalidTransition.WithMessage(fmt.Sprintf("offer in status %s cannot become %s", o.Status, to))
}

func inApp(organizationID, excludeUserID string, n models.Notification) models.NotificationIntent {
	return models.NotificationIntent{
		Channel:        models.InAppChannel,
		OrganizationID: organizationID,
		ExcludeUserID:  excludeUserID,
		Notification:   n,
	}
}

func email(organizationID string, n models.Notification) models.NotificationIntent {
	return models.NotificationIntent{
		Channel:        models.EmailChannel,
		OrganizationID: organizationID,
		Notification:   n,
	}
}
