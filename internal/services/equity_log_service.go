package services

import (
	"context"

	"github.com/senyabanana/tender-platform/internal/anonymity"
	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/equitylog"
	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/sirupsen/logrus"
)

// EquityLogService читает журнал равноправия тендера.
type EquityLogService struct {
	*Engine
}

// NewEquityLogService создаёт новый экземпляр EquityLogService.
func NewEquityLogService(engine *Engine) *EquityLogService {
	return &EquityLogService{Engine: engine}
}

// List возвращает журнал в порядке создания. Доступен владельцу и администраторам заказчика.
// Пока личности участников скрыты, вместо их пользователей выдаётся анонимный номер предложения.
func (s *EquityLogService) List(ctx context.Context, tenderID string, actor models.Actor) ([]models.EquityLogEntry, error) {
	t, entries, err := s.load(ctx, tenderID, actor)
	if err != nil {
		return nil, err
	}
	if anonymity.CanReveal(t, s.now()) {
		return entries, nil
	}
	return maskBidderActors(entries), nil
}

func (s *EquityLogService) load(ctx context.Context, tenderID string, actor models.Actor) (models.Tender, []models.EquityLogEntry, error) {
	repos := s.Store.Repos()
	t, err := repos.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return models.Tender{}, nil, err
	}
	if err := s.Guard.Authorize(actor, t.OrganizationID, authz.ViewEquityLog); err != nil {
		return models.Tender{}, nil, err
	}
	entries, err := repos.EquityLog.ListEntries(ctx, tenderID)
	if err != nil {
		return models.Tender{}, nil, err
	}
	return t, entries, nil
}

// bidderActions - записи, которые создаёт сам участник.
var bidderActions = map[models.EquityAction]bool{
	models.OfferReceivedAction:  true,
	models.OfferWithdrawnAction: true,
}

// maskBidderActors подменяет ActorID в записях участников. Хранимые записи не меняются.
func maskBidderActors(entries []models.EquityLogEntry) []models.EquityLogEntry {
	anonymousIDs := make(map[string]string)
	for _, e := range entries {
		if e.Action == models.OfferReceivedAction && e.Metadata["anonymousId"] != "" {
			anonymousIDs[e.Metadata["offerId"]] = e.Metadata["anonymousId"]
		}
	}
	masked := make([]models.EquityLogEntry, len(entries))
	for i, e := range entries {
		if bidderActions[e.Action] {
			e.ActorID = anonymousIDs[e.Metadata["offerId"]]
			if e.ActorID == "" {
				e.ActorID = anonymousActor
			}
		}
		masked[i] = e
	}
	return masked
}

const anonymousActor = "anonymous"

// ChainReport - результат проверки цепочки журнала.
type ChainReport struct {
	TenderID string `json:"tenderId"`
	Entries  int    `json:"entries"`
	Valid    bool   `json:"valid"`
	Problem  string `json:"problem,omitempty"`
}

// Verify проверяет целостность цепочки журнала тендера.
func (s *EquityLogService) Verify(ctx context.Context, tenderID string, actor models.Actor) (ChainReport, error) {
	_, entries, err := s.load(ctx, tenderID, actor)
	if err != nil {
		return ChainReport{}, err
	}
	report := ChainReport{TenderID: tenderID, Entries: len(entries), Valid: true}
	if err := equitylog.Verify(entries); err != nil {
		s.Logger.WithFields(logrus.Fields{"tender_id": tenderID, "error": err.Error()}).Error("equity log chain is broken")
		report.Valid = false
		report.Problem = err.Error()
	}
	return report, nil
}
