package router

import (
	"net/http"

	"github.com/senyabanana/tender-platform/internal/handlers"
)

// Handlers - обработчики, из которых собирается маршрутизатор.
type Handlers struct {
	Ping      *handlers.PingHandler
	Tenders   *handlers.TenderHandler
	Offers    *handlers.OfferHandler
	EquityLog *handlers.EquityLogHandler
	Payments  *handlers.PaymentHandler
}

func InitRoutes(h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", h.Ping.Ping)

	mux.HandleFunc("GET /api/tenders", h.Tenders.GetTenders)
	mux.HandleFunc("GET /api/organizations/{organizationId}/tenders", h.Tenders.GetOrganizationTenders)
	mux.HandleFunc("POST /api/organizations/{organizationId}/tenders", h.Tenders.CreateTender)
	mux.HandleFunc("GET /api/tenders/{tenderId}", h.Tenders.GetTender)
	mux.HandleFunc("PATCH /api/tenders/{tenderId}", h.Tenders.EditTender)
	mux.HandleFunc("DELETE /api/tenders/{tenderId}", h.Tenders.DeleteTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/payment", h.Tenders.RequestPayment)
	mux.HandleFunc("POST /api/tenders/{tenderId}/publish", h.Tenders.PublishTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/close", h.Tenders.CloseTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/award", h.Tenders.AwardTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/cancel", h.Tenders.CancelTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/reveal", h.Tenders.RevealIdentities)

	mux.HandleFunc("GET /api/tenders/{tenderId}/offers", h.Offers.GetTenderOffers)
	mux.HandleFunc("PUT /api/tenders/{tenderId}/offers", h.Offers.SaveDraft)
	mux.HandleFunc("GET /api/organizations/{organizationId}/offers", h.Offers.GetOrganizationOffers)
	mux.HandleFunc("GET /api/offers/{offerId}", h.Offers.GetOffer)
	mux.HandleFunc("DELETE /api/offers/{offerId}", h.Offers.DeleteOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/payment", h.Offers.RequestPayment)
	mux.HandleFunc("POST /api/offers/{offerId}/submit", h.Offers.SubmitOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/shortlist", h.Offers.ShortlistOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/unshortlist", h.Offers.UnshortlistOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/reject", h.Offers.RejectOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/accept", h.Offers.AcceptOffer)
	mux.HandleFunc("POST /api/offers/{offerId}/withdraw", h.Offers.WithdrawOffer)

	mux.HandleFunc("GET /api/tenders/{tenderId}/equity-log", h.EquityLog.GetEquityLog)
	mux.HandleFunc("GET /api/tenders/{tenderId}/equity-log/verify", h.EquityLog.VerifyEquityLog)

	mux.HandleFunc("POST /api/payments/webhook", h.Payments.Webhook)

	return mux
}
