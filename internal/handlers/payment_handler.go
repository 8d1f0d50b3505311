package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/sirupsen/logrus"
)

// PaymentHandler принимает события платёжного шлюза. Подпись события проверяется
// снаружи, здесь сверяется только общий секрет между шлюзом и сервисом.
type PaymentHandler struct {
	base
	Hook   *services.PaymentHook
	Secret string
}

// NewPaymentHandler создаёт новый экземпляр PaymentHandler.
func NewPaymentHandler(hook *services.PaymentHook, secret string, logger *logrus.Entry, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		base:   base{Logger: logger.WithField("component", "payment_handler"), Timeout: timeout},
		Hook:   hook,
		Secret: secret,
	}
}

// Webhook обрабатывает событие оплаты.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Secret")), []byte(h.Secret)) != 1 {
		h.fail(w, r, models.NewErrorResponse(http.StatusUnauthorized, "invalid webhook secret"), "invalid webhook secret")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	var event services.PaymentEvent
	if err := decodeBody(r, &event); err != nil {
		h.fail(w, r, err, "invalid request body")
		return
	}
	if err := h.Hook.Handle(ctx, event); err != nil {
		h.fail(w, r, err, "failed to apply payment event")
		return
	}
	h.respond(w, http.StatusOK, map[string]bool{"received": true})
}
