package anonymity

import (
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
)

// CanReveal решает, можно ли показывать заказчику данные участников тендера.
// Результат не кэшируется: вызывающий передаёт текущее время при каждом чтении.
func CanReveal(tender models.Tender, now time.Time) bool {
	if tender.Mode != models.AnonymousMode {
		return true
	}
	return now.After(tender.Deadline) || tender.IdentityRevealed
}

// CanViewIdentity решает, может ли актор видеть участника, подавшего предложение.
// Участник всегда видит себя.
func CanViewIdentity(tender models.Tender, offer models.Offer, viewer models.Actor, now time.Time) bool {
	if viewer.BelongsTo(offer.OrganizationID) {
		return true
	}
	return CanReveal(tender, now)
}

// Mask строит представление предложения для зрителя, подставляя анонимный
// идентификатор вместо данных организации, если раскрытие запрещено.
func Mask(tender models.Tender, offer models.Offer, bidder models.Organization, viewer models.Actor, now time.Time) models.OfferView {
	view := models.OfferView{
		ID:          offer.ID,
		TenderID:    offer.TenderID,
		Price:       offer.Price,
		Currency:    offer.Currency,
		Description: offer.Description,
		Conditions:  offer.Conditions,
		Documents:   offer.Documents,
		Status:      offer.Status,
		SubmittedAt: offer.SubmittedAt,
	}
	if CanViewIdentity(tender, offer, viewer, now) {
		view.DisplayName = bidder.Name
		view.Bidder = &models.BidderIdentity{
			OrganizationID: bidder.ID,
			Name:           bidder.Name,
			City:           bidder.City,
			Canton:         bidder.Canton,
			ContactEmail:   bidder.ContactEmail,
		}
		return view
	}
	view.DisplayName = offer.AnonymousID
	return view
}
