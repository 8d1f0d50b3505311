package models

import "time"

type EquityAction string // Вид действия в журнале равноправия

const (
	TenderCreatedAction      EquityAction = "TENDER_CREATED"
	TenderPublishedAction    EquityAction = "TENDER_PUBLISHED"
	TenderClosedAction       EquityAction = "TENDER_CLOSED"
	TenderAwardedAction      EquityAction = "TENDER_AWARDED"
	TenderCancelledAction    EquityAction = "TENDER_CANCELLED"
	TenderDeletedAction      EquityAction = "TENDER_DELETED"
	IdentityRevealedAction   EquityAction = "IDENTITY_REVEALED"
	OfferReceivedAction      EquityAction = "OFFER_RECEIVED"
	OfferShortlistedAction   EquityAction = "OFFER_SHORTLISTED"
	OfferUnshortlistedAction EquityAction = "OFFER_UNSHORTLISTED"
	OfferRejectedAction      EquityAction = "OFFER_REJECTED"
	OfferAcceptedAction      EquityAction = "OFFER_ACCEPTED"
	OfferWithdrawnAction     EquityAction = "OFFER_WITHDRAWN"
)

// EquityLogEntry - неизменяемая запись журнала равноправия.
type EquityLogEntry struct {
	ID          string            `json:"id"`
	TenderID    string            `json:"tenderId"`
	Sequence    int64             `json:"sequence"`
	ActorID     string            `json:"actorId"`
	Action      EquityAction      `json:"action"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	PrevHash    string            `json:"prevHash"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"createdAt"`
}
