package services

import (
	"context"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/lifecycle"
	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// liveOfferStatuses - поданные и ещё не завершённые предложения.
var liveOfferStatuses = []models.OfferStatus{models.SubmittedOffer, models.ShortlistedOffer, models.AcceptedOffer}

// TenderService - машина состояний тендера.
type TenderService struct {
	*Engine
}

// NewTenderService создаёт новый экземпляр TenderService.
func NewTenderService(engine *Engine) *TenderService {
	return &TenderService{Engine: engine}
}

// CreateTender создает новый тендер в статусе Draft.
func (s *TenderService) CreateTender(ctx context.Context, organizationID string, actor models.Actor, req models.TenderRequest) (models.Tender, error) {
	if err := s.Guard.Authorize(actor, organizationID, authz.CreateTender); err != nil {
		return models.Tender{}, err
	}
	tr, err := lifecycle.NewTender(uuid.New().String(), organizationID, actor, req, s.now())
	if err != nil {
		return models.Tender{}, err
	}
	err = s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Organizations.GetOrganization(ctx, organizationID); err != nil {
			return err
		}
		if err := tx.Tenders.CreateTender(ctx, tr.Tender); err != nil {
			return err
		}
		return s.record(ctx, tx, tr.Tender.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Tender{}, err
	}
	s.logTransition(tr.Log.Action, tr.Tender.ID, actor, nil)
	return tr.Tender, nil
}

// EditDraft изменяет черновик тендера.
func (s *TenderService) EditDraft(ctx context.Context, tenderID string, actor models.Actor, req models.TenderRequest) (models.Tender, error) {
	var updated models.Tender
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.EditTender); err != nil {
			return err
		}
		updated, err = lifecycle.EditDraft(t, req, s.now())
		if err != nil {
			return err
		}
		return tx.Tenders.UpdateTender(ctx, updated)
	})
	return updated, err
}

// DeleteDraft удаляет черновик вместе с его предложениями. Запись журнала остаётся.
func (s *TenderService) DeleteDraft(ctx context.Context, tenderID string, actor models.Actor) error {
	return s.deleteDraft(ctx, tenderID, actor, authz.DeleteTender, "deleted by organization", false)
}

func (s *TenderService) deleteDraft(ctx context.Context, tenderID string, actor models.Actor, capability authz.Capability, reason string, pendingOnly bool) error {
	var intent lifecycle.LogIntent
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, capability); err != nil {
			return err
		}
		if pendingOnly && t.PaymentStatus != models.PaymentPending {
			return models.ErrInvalidTransition.WithMessage("tender publication is not awaiting payment")
		}
		intent, err = lifecycle.DeleteDraft(t, reason)
		if err != nil {
			return err
		}
		if err := s.record(ctx, tx, t.ID, actor, intent); err != nil {
			return err
		}
		return tx.Tenders.DeleteTender(ctx, t.ID)
	})
	if err != nil {
		return err
	}
	s.logTransition(intent.Action, tenderID, actor, logrus.Fields{"reason": reason})
	return nil
}

// RequestPublicationPayment помечает черновик как ожидающий оплаты публикации.
func (s *TenderService) RequestPublicationPayment(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error) {
	var updated models.Tender
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.RequestTenderPayment); err != nil {
			return err
		}
		updated, err = lifecycle.MarkPublicationPending(t, s.now())
		if err != nil {
			return err
		}
		return tx.Tenders.UpdateTender(ctx, updated)
	})
	return updated, err
}

// Publish публикует черновик тендера.
func (s *TenderService) Publish(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error) {
	return s.publish(ctx, tenderID, actor, false)
}

func (s *TenderService) publish(ctx context.Context, tenderID string, actor models.Actor, paid bool) (models.Tender, error) {
	var tr lifecycle.TenderTransition
	alreadyPublished := false
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.PublishTender); err != nil {
			return err
		}
		if paid && t.Status != models.DraftTender && t.PaymentStatus == models.PaymentPaid {
			// Повторное подтверждение той же оплаты.
			tr.Tender = t
			alreadyPublished = true
			return nil
		}
		tr, err = lifecycle.Publish(t, actor, s.now())
		if err != nil {
			return err
		}
		if paid {
			tr.Tender.PaymentStatus = models.PaymentPaid
		}
		if err := tx.Tenders.UpdateTender(ctx, tr.Tender); err != nil {
			return err
		}
		if err := s.record(ctx, tx, t.ID, actor, tr.Log); err != nil {
			return err
		}
		if tr.Tender.Visibility == models.PublicTender {
			subscribers, err := tx.SavedSearches.MatchingOrganizations(ctx, tr.Tender.Category)
			if err != nil {
				return err
			}
			tr.Notifications = append(tr.Notifications, lifecycle.MatchNotifications(tr.Tender, subscribers)...)
		}
		return nil
	})
	if err != nil {
		return models.Tender{}, err
	}
	if alreadyPublished {
		return tr.Tender, nil
	}
	s.logTransition(tr.Log.Action, tenderID, actor, logrus.Fields{"paid": paid})
	s.dispatch(ctx, tr.Notifications)
	return tr.Tender, nil
}

// Close закрывает приём предложений. До дедлайна закрыть может только владелец или администратор.
func (s *TenderService) Close(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error) {
	var tr lifecycle.TenderTransition
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		now := s.now()
		capability := authz.CloseTender
		if lifecycle.ClosingEarly(t, now) {
			capability = authz.CloseTenderEarly
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, capability); err != nil {
			return err
		}
		count, err := tx.Offers.CountTenderOffers(ctx, t.ID, liveOfferStatuses)
		if err != nil {
			return err
		}
		tr, err = lifecycle.Close(t, count, now)
		if err != nil {
			return err
		}
		if err := tx.Tenders.UpdateTender(ctx, tr.Tender); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Tender{}, err
	}
	s.logTransition(tr.Log.Action, tenderID, actor, logrus.Fields{"early": tr.Log.Metadata["early"]})
	return tr.Tender, nil
}

// Award присуждает тендер принятому предложению.
func (s *TenderService) Award(ctx context.Context, tenderID string, actor models.Actor, winningOfferID string) (models.Tender, error) {
	var tr lifecycle.AwardTransition
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.AwardTender); err != nil {
			return err
		}
		winner, err := tx.Offers.GetOfferForUpdate(ctx, winningOfferID)
		if err != nil {
			return err
		}
		winnerOrg, err := tx.Organizations.GetOrganization(ctx, winner.OrganizationID)
		if err != nil {
			return err
		}
		others, err := tx.Offers.ListTenderOffers(ctx, t.ID, liveOfferStatuses)
		if err != nil {
			return err
		}
		tr, err = lifecycle.Award(t, winner, winnerOrg, others, actor, s.now())
		if err != nil {
			return err
		}
		if err := tx.Tenders.UpdateTender(ctx, tr.Tender); err != nil {
			return err
		}
		if err := tx.Offers.UpdateOffer(ctx, tr.Winner); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Tender{}, err
	}
	s.logTransition(tr.Log.Action, tenderID, actor, logrus.Fields{"offer_id": winningOfferID})
	s.dispatch(ctx, tr.Notifications)
	return tr.Tender, nil
}

// Cancel отменяет тендер и уведомляет участников с поданными предложениями.
func (s *TenderService) Cancel(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error) {
	var tr lifecycle.TenderTransition
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.CancelTender); err != nil {
			return err
		}
		offers, err := tx.Offers.ListTenderOffers(ctx, t.ID, liveOfferStatuses)
		if err != nil {
			return err
		}
		tr, err = lifecycle.Cancel(t, offers, s.now())
		if err != nil {
			return err
		}
		if err := tx.Tenders.UpdateTender(ctx, tr.Tender); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Tender{}, err
	}
	s.logTransition(tr.Log.Action, tenderID, actor, nil)
	s.dispatch(ctx, tr.Notifications)
	return tr.Tender, nil
}

// RevealIdentities раскрывает участников анонимного тендера.
func (s *TenderService) RevealIdentities(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, error) {
	var tr lifecycle.TenderTransition
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, t.OrganizationID, authz.RevealIdentities); err != nil {
			return err
		}
		tr, err = lifecycle.RevealIdentities(t, s.now())
		if err != nil {
			return err
		}
		if err := tx.Tenders.UpdateTender(ctx, tr.Tender); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Tender{}, err
	}
	s.logTransition(tr.Log.Action, tenderID, actor, nil)
	return tr.Tender, nil
}

// GetTender возвращает тендер, если он виден актору.
func (s *TenderService) GetTender(ctx context.Context, tenderID string, viewer models.Actor) (models.Tender, error) {
	t, err := s.Store.Repos().Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return models.Tender{}, err
	}
	if !lifecycle.Visible(t, viewer) {
		return models.Tender{}, models.ErrTenderNotFound
	}
	return t, nil
}

// FetchTenders возвращает публичные опубликованные тендеры.
func (s *TenderService) FetchTenders(ctx context.Context, limit, offset int, categories []string) ([]models.Tender, error) {
	return s.Store.Repos().Tenders.ListPublishedTenders(ctx, repository.TenderFilter{
		Categories: categories,
		Limit:      limit,
		Offset:     offset,
	})
}

// GetOrganizationTenders возвращает тендеры организации, включая черновики.
func (s *TenderService) GetOrganizationTenders(ctx context.Context, organizationID string, viewer models.Actor, limit, offset int) ([]models.Tender, error) {
	if err := s.Guard.Authorize(viewer, organizationID, authz.ViewTender); err != nil {
		return nil, err
	}
	return s.Store.Repos().Tenders.ListOrganizationTenders(ctx, organizationID, limit, offset)
}
