package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	TenderStatus     string // Статус тендера
	DisclosureMode   string // Режим раскрытия участников
	TenderVisibility string // Видимость тендера
	PaymentStatus    string // Статус оплаты публикации или подачи
)

const (
	DraftTender     TenderStatus = "Draft"     // Тендер создан, не опубликован
	PublishedTender TenderStatus = "Published" // Тендер опубликован и принимает предложения
	ClosedTender    TenderStatus = "Closed"    // Приём предложений закрыт
	AwardedTender   TenderStatus = "Awarded"   // Победитель определён
	CancelledTender TenderStatus = "Cancelled" // Тендер отменён

	ClassicMode   DisclosureMode = "Classic"   // Участники видны всегда
	AnonymousMode DisclosureMode = "Anonymous" // Участники скрыты до раскрытия

	PublicTender  TenderVisibility = "Public"
	PrivateTender TenderVisibility = "Private"

	PaymentNone    PaymentStatus = "None"
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// Terminal сообщает, является ли статус тендера конечным.
func (s TenderStatus) Terminal() bool {
	return s == AwardedTender || s == CancelledTender
}

// Tender представляет модель тендера.
type Tender struct {
	ID               string           `json:"id"`
	OrganizationID   string           `json:"organizationId"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	Budget           *decimal.Decimal `json:"budget,omitempty"`
	Currency         string           `json:"currency"`
	Deadline         time.Time        `json:"deadline"`
	Mode             DisclosureMode   `json:"mode"`
	Visibility       TenderVisibility `json:"visibility"`
	Status           TenderStatus     `json:"status"`
	IdentityRevealed bool             `json:"identityRevealed"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	AwardedOfferID   string           `json:"awardedOfferId,omitempty"`
	CreatedBy        string           `json:"createdBy"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	PublishedAt      *time.Time       `json:"publishedAt,omitempty"`
	ClosedAt         *time.Time       `json:"closedAt,omitempty"`
}

// TenderRequest представляет структуру запроса для создания или обновления тендера.
type TenderRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	Currency    string           `json:"currency"`
	Deadline    time.Time        `json:"deadline"`
	Mode        DisclosureMode   `json:"mode"`
	Visibility  TenderVisibility `json:"visibility"`
}
