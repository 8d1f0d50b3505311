package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/tender-platform/internal/anonymity"
	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/lifecycle"
	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/repository"
	"github.com/senyabanana/tender-platform/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// submittedOfferStatuses - все статусы, которые видит заказчик.
var submittedOfferStatuses = []models.OfferStatus{
	models.SubmittedOffer,
	models.ShortlistedOffer,
	models.RejectedOffer,
	models.AcceptedOffer,
	models.AwardedOffer,
	models.WithdrawnOffer,
}

// OfferService - машина состояний предложения.
type OfferService struct {
	*Engine
}

// NewOfferService создаёт новый экземпляр OfferService.
func NewOfferService(engine *Engine) *OfferService {
	return &OfferService{Engine: engine}
}

// NewAnonymousID возвращает отображаемый идентификатор участника анонимного тендера.
func NewAnonymousID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "BID-" + strings.ToUpper(raw[:8])
}

// SaveDraft создаёт или обновляет черновик предложения организации.
func (s *OfferService) SaveDraft(ctx context.Context, tenderID, organizationID string, actor models.Actor, req models.OfferRequest) (models.Offer, error) {
	if err := s.Guard.Authorize(actor, organizationID, authz.SaveOfferDraft); err != nil {
		return models.Offer{}, err
	}
	var saved models.Offer
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, err := tx.Tenders.GetTenderForUpdate(ctx, tenderID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := lifecycle.CheckDraftable(t, organizationID, now); err != nil {
			return err
		}

		var existing *models.Offer
		if req.OfferID != "" {
			o, err := tx.Offers.GetOfferForUpdate(ctx, req.OfferID)
			if err != nil {
				return err
			}
			if o.TenderID != t.ID || o.OrganizationID != organizationID {
				return models.ErrOfferNotFound
			}
			existing = &o
		} else {
			existing, err = tx.Offers.FindActiveOffer(ctx, t.ID, organizationID)
			if err != nil {
				return err
			}
		}

		if existing == nil {
			saved, err = lifecycle.NewDraft(uuid.New().String(), t, organizationID, actor, req, now)
			if err != nil {
				return err
			}
			return tx.Offers.CreateOffer(ctx, saved)
		}
		if existing.Status != models.DraftOffer {
			if req.OfferID == "" {
				return models.ErrDuplicateActiveOffer
			}
			return models.ErrInvalidTransition.WithMessage(fmt.Sprintf("offer in status %s cannot be edited", existing.Status))
		}
		saved, err = lifecycle.UpdateDraft(*existing, t, req, now)
		if err != nil {
			return err
		}
		return tx.Offers.UpdateOffer(ctx, saved)
	})
	if err != nil {
		return models.Offer{}, err
	}
	return saved, nil
}

// DeleteDraft удаляет черновик предложения.
func (s *OfferService) DeleteDraft(ctx context.Context, offerID string, actor models.Actor) error {
	return s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		_, o, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, o.OrganizationID, authz.DeleteOfferDraft); err != nil {
			return err
		}
		if err := lifecycle.DeleteOfferDraft(o); err != nil {
			return err
		}
		return tx.Offers.DeleteOffer(ctx, o.ID)
	})
}

// RequestSubmissionPayment помечает черновик как ожидающий оплаты подачи.
func (s *OfferService) RequestSubmissionPayment(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	var updated models.Offer
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, o, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, o.OrganizationID, authz.RequestOfferPayment); err != nil {
			return err
		}
		updated, err = lifecycle.MarkSubmissionPending(o, t, s.now())
		if err != nil {
			return err
		}
		return tx.Offers.UpdateOffer(ctx, updated)
	})
	return updated, err
}

// Submit подаёт черновик предложения.
func (s *OfferService) Submit(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.submit(ctx, offerID, actor, false)
}

func (s *OfferService) submit(ctx context.Context, offerID string, actor models.Actor, paid bool) (models.Offer, error) {
	var tr lifecycle.OfferTransition
	alreadySubmitted := false
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, o, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, o.OrganizationID, authz.SubmitOffer); err != nil {
			return err
		}
		if paid && o.Status != models.DraftOffer && o.PaymentStatus == models.PaymentPaid {
			tr.Offer = o
			alreadySubmitted = true
			return nil
		}
		bidder, err := tx.Organizations.GetOrganization(ctx, o.OrganizationID)
		if err != nil {
			return err
		}
		tr, err = lifecycle.Submit(t, o, bidder, actor, NewAnonymousID(), s.now())
		if err != nil {
			return err
		}
		// Проверка внутри той же транзакции; последнее слово за уникальным индексом.
		active, err := tx.Offers.FindActiveOffer(ctx, t.ID, o.OrganizationID)
		if err != nil {
			return err
		}
		if active != nil && active.ID != o.ID {
			return models.ErrDuplicateActiveOffer
		}
		if paid {
			tr.Offer.PaymentStatus = models.PaymentPaid
		}
		if err := tx.Offers.UpdateOffer(ctx, tr.Offer); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Offer{}, err
	}
	if alreadySubmitted {
		return tr.Offer, nil
	}
	s.logTransition(tr.Log.Action, tr.Offer.TenderID, actor, logrus.Fields{"offer_id": offerID, "paid": paid})
	s.dispatch(ctx, tr.Notifications)
	return tr.Offer, nil
}

type offerDecision func(t models.Tender, o models.Offer, actor models.Actor) (lifecycle.OfferTransition, error)

// transition выполняет переход предложения с проверкой права в организации,
// которую возвращает owner.
func (s *OfferService) transition(ctx context.Context, offerID string, actor models.Actor, capability authz.Capability, owner func(t models.Tender, o models.Offer) string, decide offerDecision) (models.Offer, error) {
	var tr lifecycle.OfferTransition
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		t, o, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if err := s.Guard.Authorize(actor, owner(t, o), capability); err != nil {
			return err
		}
		tr, err = decide(t, o, actor)
		if err != nil {
			return err
		}
		if err := tx.Offers.UpdateOffer(ctx, tr.Offer); err != nil {
			return err
		}
		return s.record(ctx, tx, t.ID, actor, tr.Log)
	})
	if err != nil {
		return models.Offer{}, err
	}
	s.logTransition(tr.Log.Action, tr.Offer.TenderID, actor, logrus.Fields{"offer_id": offerID})
	s.dispatch(ctx, tr.Notifications)
	return tr.Offer, nil
}

func procuring(t models.Tender, _ models.Offer) string { return t.OrganizationID }

func bidding(_ models.Tender, o models.Offer) string { return o.OrganizationID }

// Shortlist переводит предложение в короткий список.
func (s *OfferService) Shortlist(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.transition(ctx, offerID, actor, authz.ShortlistOffer, procuring, func(t models.Tender, o models.Offer, _ models.Actor) (lifecycle.OfferTransition, error) {
		return lifecycle.Shortlist(t, o, s.now())
	})
}

// Unshortlist возвращает предложение из короткого списка.
func (s *OfferService) Unshortlist(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.transition(ctx, offerID, actor, authz.UnshortlistOffer, procuring, func(t models.Tender, o models.Offer, _ models.Actor) (lifecycle.OfferTransition, error) {
		return lifecycle.Unshortlist(t, o, s.now())
	})
}

// Reject отклоняет предложение.
func (s *OfferService) Reject(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.transition(ctx, offerID, actor, authz.RejectOffer, procuring, func(t models.Tender, o models.Offer, _ models.Actor) (lifecycle.OfferTransition, error) {
		return lifecycle.Reject(t, o, s.now())
	})
}

// Accept помечает предложение как принятое до присуждения тендера.
func (s *OfferService) Accept(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.transition(ctx, offerID, actor, authz.AcceptOffer, procuring, func(t models.Tender, o models.Offer, _ models.Actor) (lifecycle.OfferTransition, error) {
		return lifecycle.Accept(t, o, s.now())
	})
}

// Withdraw отзывает предложение по инициативе участника.
func (s *OfferService) Withdraw(ctx context.Context, offerID string, actor models.Actor) (models.Offer, error) {
	return s.transition(ctx, offerID, actor, authz.WithdrawOffer, bidding, func(t models.Tender, o models.Offer, _ models.Actor) (lifecycle.OfferTransition, error) {
		return lifecycle.Withdraw(t, o, s.now())
	})
}

// markPaymentFailed помечает неудавшуюся оплату подачи.
func (s *OfferService) markPaymentFailed(ctx context.Context, offerID string) (models.Offer, error) {
	var updated models.Offer
	err := s.Store.WithinTx(ctx, func(tx repository.Repositories) error {
		_, o, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if o.PaymentStatus != models.PaymentPending {
			return models.ErrInvalidTransition.WithMessage("offer submission is not awaiting payment")
		}
		o.PaymentStatus = models.PaymentFailed
		o.UpdatedAt = s.now()
		updated = o
		return tx.Offers.UpdateOffer(ctx, o)
	})
	return updated, err
}

// GetOffer возвращает предложение с учётом анонимности. Черновик видит только участник.
func (s *OfferService) GetOffer(ctx context.Context, offerID string, viewer models.Actor) (models.OfferView, error) {
	repos := s.Store.Repos()
	o, err := repos.Offers.GetOffer(ctx, offerID)
	if err != nil {
		return models.OfferView{}, err
	}
	t, err := repos.Tenders.GetTender(ctx, o.TenderID)
	if err != nil {
		return models.OfferView{}, err
	}
	own := viewer.BelongsTo(o.OrganizationID)
	if !own && (o.Status == models.DraftOffer || s.Guard.Authorize(viewer, t.OrganizationID, authz.ViewOffers) != nil) {
		return models.OfferView{}, models.ErrOfferNotFound
	}
	bidder, err := repos.Organizations.GetOrganization(ctx, o.OrganizationID)
	if err != nil {
		return models.OfferView{}, err
	}
	return anonymity.Mask(t, o, bidder, viewer, s.now()), nil
}

// GetTenderOffers возвращает поданные предложения тендера для заказчика.
// Данные участников скрываются, пока AnonymityGate не разрешит раскрытие.
func (s *OfferService) GetTenderOffers(ctx context.Context, tenderID string, viewer models.Actor, limit, offset int) ([]models.OfferView, error) {
	repos := s.Store.Repos()
	t, err := repos.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if err := s.Guard.Authorize(viewer, t.OrganizationID, authz.ViewOffers); err != nil {
		return nil, err
	}
	offers, err := repos.Offers.ListTenderOffers(ctx, t.ID, submittedOfferStatuses)
	if err != nil {
		return nil, err
	}
	offers = utils.Paginate(offers, limit, offset)
	return s.views(ctx, repos, t, offers, viewer)
}

// GetOrganizationOffers возвращает предложения организации.
func (s *OfferService) GetOrganizationOffers(ctx context.Context, organizationID string, viewer models.Actor, limit, offset int) ([]models.OfferView, error) {
	if err := s.Guard.Authorize(viewer, organizationID, authz.ViewOffers); err != nil {
		return nil, err
	}
	repos := s.Store.Repos()
	offers, err := repos.Offers.ListOrganizationOffers(ctx, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]models.OfferView, 0, len(offers))
	for _, o := range offers {
		t, err := repos.Tenders.GetTender(ctx, o.TenderID)
		if err != nil {
			return nil, err
		}
		v, err := s.views(ctx, repos, t, []models.Offer{o}, viewer)
		if err != nil {
			return nil, err
		}
		views = append(views, v...)
	}
	return views, nil
}

func (s *OfferService) views(ctx context.Context, repos repository.Repositories, t models.Tender, offers []models.Offer, viewer models.Actor) ([]models.OfferView, error) {
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.OrganizationID)
	}
	orgs, err := repos.Organizations.GetOrganizations(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]models.OfferView, 0, len(offers))
	for _, o := range offers {
		views = append(views, anonymity.Mask(t, o, orgs[o.OrganizationID], viewer, now))
	}
	return views, nil
}
