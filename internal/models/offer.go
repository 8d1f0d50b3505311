package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string // Статус предложения

const (
	DraftOffer       OfferStatus = "Draft"       // Черновик, виден только участнику
	SubmittedOffer   OfferStatus = "Submitted"   // Предложение подано
	ShortlistedOffer OfferStatus = "Shortlisted" // Предложение в коротком списке
	RejectedOffer    OfferStatus = "Rejected"    // Предложение отклонено
	AcceptedOffer    OfferStatus = "Accepted"    // Предложение принято, ожидает присуждения
	AwardedOffer     OfferStatus = "Awarded"     // Предложение победило
	WithdrawnOffer   OfferStatus = "Withdrawn"   // Предложение отозвано участником
)

// ActiveOfferStatuses - статусы, в которых у организации может быть только одно предложение на тендер.
var ActiveOfferStatuses = []OfferStatus{DraftOffer, SubmittedOffer, ShortlistedOffer, AcceptedOffer}

// Active сообщает, является ли статус активным.
func (s OfferStatus) Active() bool {
	switch s {
	case DraftOffer, SubmittedOffer, ShortlistedOffer, AcceptedOffer:
		return true
	}
	return false
}

// Terminal сообщает, является ли статус конечным.
func (s OfferStatus) Terminal() bool {
	return s == RejectedOffer || s == AwardedOffer || s == WithdrawnOffer
}

// Offer представляет модель предложения.
type Offer struct {
	ID             string          `json:"id"`
	TenderID       string          `json:"tenderId"`
	OrganizationID string          `json:"organizationId"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	Conditions     string          `json:"conditions"`
	Documents      []string        `json:"documents"`
	Status         OfferStatus     `json:"status"`
	AnonymousID    string          `json:"anonymousId,omitempty"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	SubmittedAt    *time.Time      `json:"submittedAt,omitempty"`
}

// OfferRequest представляет структуру запроса для сохранения черновика предложения.
type OfferRequest struct {
	OfferID     string          `json:"offerId,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Conditions  string          `json:"conditions"`
	Documents   []string        `json:"documents"`
}

// BidderIdentity - раскрываемые данные участника.
type BidderIdentity struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	City           string `json:"city"`
	Canton         string `json:"canton"`
	ContactEmail   string `json:"contactEmail"`
}

// OfferView - предложение в том виде, в котором его видит заказчик.
// Bidder пуст, пока участник скрыт; DisplayName тогда содержит анонимный идентификатор.
type OfferView struct {
	ID          string          `json:"id"`
	TenderID    string          `json:"tenderId"`
	DisplayName string          `json:"displayName"`
	Bidder      *BidderIdentity `json:"bidder,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Conditions  string          `json:"conditions"`
	Documents   []string        `json:"documents"`
	Status      OfferStatus     `json:"status"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
}
