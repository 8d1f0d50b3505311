package authz

import (
	"fmt"

	"github.com/senyabanana/tender-platform/internal/models"
)

// Capability - имя перехода или чтения, на которое проверяется право.
type Capability string

const (
	CreateTender         Capability = "tender.create"
	EditTender           Capability = "tender.edit"
	DeleteTender         Capability = "tender.delete"
	PublishTender        Capability = "tender.publish"
	CloseTender          Capability = "tender.close"
	CloseTenderEarly     Capability = "tender.close_early"
	AwardTender          Capability = "tender.award"
	CancelTender         Capability = "tender.cancel"
	RevealIdentities     Capability = "tender.reveal"
	RequestTenderPayment Capability = "tender.request_payment"
	ViewTender           Capability = "tender.view"
	SaveOfferDraft       Capability = "offer.save_draft"
	DeleteOfferDraft     Capability = "offer.delete"
	SubmitOffer          Capability = "offer.submit"
	RequestOfferPayment  Capability = "offer.request_payment"
	WithdrawOffer        Capability = "offer.withdraw"
	ShortlistOffer       Capability = "offer.shortlist"
	UnshortlistOffer     Capability = "offer.unshortlist"
	RejectOffer          Capability = "offer.reject"
	AcceptOffer          Capability = "offer.accept"
	ViewOffers           Capability = "offer.view"
	ViewEquityLog        Capability = "equity_log.view"
)

var (
	managers = []models.Role{models.OwnerRole, models.AdminRole}
	editors  = []models.Role{models.OwnerRole, models.AdminRole, models.EditorRole}
	members  = []models.Role{models.OwnerRole, models.AdminRole, models.EditorRole, models.ViewerRole}
)

// DefaultTable - роли, которым разрешена каждая операция.
var DefaultTable = map[Capability][]models.Role{
	CreateTender:         editors,
	EditTender:           editors,
	DeleteTender:         editors,
	PublishTender:        editors,
	CloseTender:          editors,
	CloseTenderEarly:     managers,
	AwardTender:          managers,
	CancelTender:         managers,
	RevealIdentities:     managers,
	RequestTenderPayment: editors,
	ViewTender:           members,
	SaveOfferDraft:       editors,
	DeleteOfferDraft:     editors,
	SubmitOffer:          editors,
	RequestOfferPayment:  editors,
	WithdrawOffer:        editors,
	ShortlistOffer:       managers,
	UnshortlistOffer:     managers,
	RejectOffer:          managers,
	AcceptOffer:          managers,
	ViewOffers:           members,
	ViewEquityLog:        managers,
}

// Guard проверяет права актора по таблице возможностей.
type Guard struct {
	allowed map[models.Role]map[Capability]struct{}
}

// NewGuard создаёт Guard по таблице capability -> роли.
func NewGuard(table map[Capability][]models.Role) *Guard {
	allowed := make(map[models.Role]map[Capability]struct{})
	for capability, roles := range table {
		for _, role := range roles {
			if allowed[role] == nil {
				allowed[role] = make(map[Capability]struct{})
			}
			allowed[role][capability] = struct{}{}
		}
	}
	return &Guard{allowed: allowed}
}

// Allows сообщает, разрешена ли операция роли.
func (g *Guard) Allows(role models.Role, capability Capability) bool {
	_, ok := g.allowed[role][capability]
	return ok
}

// Authorize проверяет, что актор имеет право на операцию в организации.
// Системный актор платёжной системы проходит любую проверку.
func (g *Guard) Authorize(actor models.Actor, organizationID string, capability Capability) error {
	if actor.System {
		return nil
	}
	role, ok := actor.RoleIn(organizationID)
	if !ok || !g.Allows(role, capability) {
		return models.ErrUnauthorized.WithMessage(fmt.Sprintf("you are not allowed to %s for this organization", capability))
	}
	return nil
}
