package services

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/clock"
	"github.com/senyabanana/tender-platform/internal/equitylog"
	"github.com/senyabanana/tender-platform/internal/lifecycle"
	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/notify"
	"github.com/senyabanana/tender-platform/internal/repository"

	"github.com/sirupsen/logrus"
)

// Engine - общие зависимости машин состояний тендера и предложения.
type Engine struct {
	Store    repository.Store
	Guard    *authz.Guard
	Clock    clock.Clock
	Notifier notify.Dispatcher
	Logger   *logrus.Entry
	equity   *equitylog.Logger
}

// NewEngine создаёт новый экземпляр Engine.
func NewEngine(store repository.Store, guard *authz.Guard, clk clock.Clock, notifier notify.Dispatcher, logger *logrus.Entry) *Engine {
	return &Engine{
		Store:    store,
		Guard:    guard,
		Clock:    clk,
		Notifier: notifier,
		Logger:   logger,
		equity:   equitylog.NewLogger(clk),
	}
}

func (e *Engine) now() time.Time {
	return e.Clock.Now().UTC()
}

// record добавляет запись журнала в той же транзакции, что и переход.
func (e *Engine) record(ctx context.Context, tx repository.Repositories, tenderID string, actor models.Actor, intent lifecycle.LogIntent) error {
	_, err := e.equity.Append(ctx, tx.EquityLog, tenderID, actor.UserID, intent.Action, intent.Description, intent.Metadata)
	return err
}

// dispatch вызывается только после фиксации транзакции.
func (e *Engine) dispatch(ctx context.Context, intents []models.NotificationIntent) {
	if len(intents) == 0 || e.Notifier == nil {
		return
	}
	e.Notifier.Dispatch(ctx, intents)
}

func (e *Engine) logTransition(action models.EquityAction, tenderID string, actor models.Actor, fields logrus.Fields) {
	entry := e.Logger.WithFields(logrus.Fields{
		"action":    action,
		"tender_id": tenderID,
		"actor_id":  actor.UserID,
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info("transition committed")
}

// lockOffer блокирует тендер, затем предложение. Порядок блокировок единый
// для всех переходов, чтобы параллельные транзакции не взаимоблокировались.
func lockOffer(ctx context.Context, tx repository.Repositories, offerID string) (models.Tender, models.Offer, error) {
	o, err := tx.Offers.GetOffer(ctx, offerID)
	if err != nil {
		return models.Tender{}, models.Offer{}, err
	}
	t, err := tx.Tenders.GetTenderForUpdate(ctx, o.TenderID)
	if err != nil {
		return models.Tender{}, models.Offer{}, err
	}
	o, err = tx.Offers.GetOfferForUpdate(ctx, offerID)
	if err != nil {
		return models.Tender{}, models.Offer{}, err
	}
	return t, o, nil
}

// IsDomainError сообщает, является ли ошибка ожидаемым отказом перехода.
func IsDomainError(err error) bool {
	var e *models.ErrorResponse
	return errors.As(err, &e)
}
