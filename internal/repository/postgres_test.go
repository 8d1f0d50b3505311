package repository_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/clock"
	"github.com/senyabanana/tender-platform/internal/equitylog"
	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/notify"
	"github.com/senyabanana/tender-platform/internal/repository"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// openTestDB подключается к TEST_DATABASE_URL и применяет миграции.
func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	m, err := migrate.New("file://../../migrations", url)
	if err != nil {
		t.Fatalf("migrate.New: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

type seeded struct {
	buyer, bidder models.Actor
	buyerOrg      string
	bidderOrg     string
}

func seed(t *testing.T, pool *pgxpool.Pool) seeded {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.New().String()[:8]
	s := seeded{buyerOrg: "buyer-" + suffix, bidderOrg: "bidder-" + suffix}
	s.buyer = models.Actor{UserID: "u-buyer-" + suffix}
	s.bidder = models.Actor{UserID: "u-bidder-" + suffix}

	for _, org := range [][2]string{{s.buyerOrg, "Gemeinde Wil"}, {s.bidderOrg, "Ostbau AG"}} {
		if _, err := pool.Exec(ctx, `INSERT INTO organization (id, name, city, canton) VALUES ($1, $2, 'Wil', 'SG')`, org[0], org[1]); err != nil {
			t.Fatalf("insert organization: %v", err)
		}
	}
	for _, m := range []models.Membership{
		{OrganizationID: s.buyerOrg, UserID: s.buyer.UserID, Role: models.OwnerRole},
		{OrganizationID: s.bidderOrg, UserID: s.bidder.UserID, Role: models.EditorRole},
	} {
		if _, err := pool.Exec(ctx, `INSERT INTO membership (organization_id, user_id, role) VALUES ($1, $2, $3)`, m.OrganizationID, m.UserID, m.Role); err != nil {
			t.Fatalf("insert membership: %v", err)
		}
	}

	store := repository.NewPostgresStore(pool)
	var err error
	if s.buyer.Memberships, err = store.Repos().Organizations.ListMemberships(ctx, s.buyer.UserID); err != nil {
		t.Fatal(err)
	}
	if s.bidder.Memberships, err = store.Repos().Organizations.ListMemberships(ctx, s.bidder.UserID); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPostgresLifecycle(t *testing.T) {
	pool := openTestDB(t)
	s := seed(t, pool)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)
	store := repository.NewPostgresStore(pool)
	clk := clock.Fake(time.Now().UTC())
	engine := services.NewEngine(store, authz.NewGuard(authz.DefaultTable), clk, notify.NewInline(repository.NewOutboxFanout(pool), entry), entry)
	tenders := services.NewTenderService(engine)
	offers := services.NewOfferService(engine)

	budget := decimal.NewFromInt(250000)
	tender, err := tenders.CreateTender(ctx, s.buyerOrg, s.buyer, models.TenderRequest{
		Title:       "Winterdienst 2026",
		Description: "Snow clearing",
		Category:    "services",
		Budget:      &budget,
		Deadline:    clk.Now().Add(48 * time.Hour),
		Mode:        models.AnonymousMode,
		Visibility:  models.PublicTender,
	})
	if err != nil {
		t.Fatalf("CreateTender: %v", err)
	}
	if tender, err = tenders.Publish(ctx, tender.ID, s.buyer); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	draft, err := offers.SaveDraft(ctx, tender.ID, s.bidderOrg, s.bidder, models.OfferRequest{
		Price:     decimal.RequireFromString("198500.50"),
		Documents: []string{"offers/winter.pdf"},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	submitted, err := offers.Submit(ctx, draft.ID, s.bidder)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Вторая активная заявка отсекается уникальным индексом.
	dup := submitted
	dup.ID = uuid.New().String()
	dup.Status = models.DraftOffer
	dup.SubmittedAt = nil
	err = store.Repos().Offers.CreateOffer(ctx, dup)
	if !errors.Is(err, models.ErrDuplicateActiveOffer) {
		t.Fatalf("duplicate insert: got %v", err)
	}

	stored, err := store.Repos().Offers.GetOffer(ctx, submitted.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Price.Equal(decimal.RequireFromString("198500.50")) || stored.AnonymousID != submitted.AnonymousID {
		t.Fatalf("stored offer = %+v", stored)
	}

	entries, err := store.Repos().EquityLog.ListEntries(ctx, tender.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if err := equitylog.Verify(entries); err != nil {
		t.Fatalf("chain read back from postgres does not verify: %v", err)
	}

	if _, err := pool.Exec(ctx, `UPDATE equity_log SET description = 'edited' WHERE id = $1`, entries[0].ID); err == nil {
		t.Fatal("equity_log accepted an UPDATE")
	}

	var outbox int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM notification_outbox WHERE organization_id = $1`, s.bidderOrg).Scan(&outbox); err != nil {
		t.Fatal(err)
	}
	if outbox == 0 {
		t.Fatal("no outbox rows for the bidder")
	}
}

func TestPostgresTxRollback(t *testing.T) {
	pool := openTestDB(t)
	s := seed(t, pool)
	ctx := context.Background()
	store := repository.NewPostgresStore(pool)

	now := time.Now().UTC()
	tender := models.Tender{
		ID: uuid.New().String(), OrganizationID: s.buyerOrg, Title: "Rollback", Description: "x",
		Category: "it", Currency: "CHF", Deadline: now.Add(time.Hour), Mode: models.ClassicMode,
		Visibility: models.PublicTender, Status: models.DraftTender, PaymentStatus: models.PaymentNone,
		CreatedBy: s.buyer.UserID, CreatedAt: now, UpdatedAt: now,
	}
	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Tenders.CreateTender(ctx, tender); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx = %v", err)
	}
	if _, err := store.Repos().Tenders.GetTender(ctx, tender.ID); !errors.Is(err, models.ErrTenderNotFound) {
		t.Fatalf("tender survived rollback: %v", err)
	}
}

func TestPostgresConcurrentActiveOffers(t *testing.T) {
	pool := openTestDB(t)
	s := seed(t, pool)
	ctx := context.Background()
	store := repository.NewPostgresStore(pool)

	now := time.Now().UTC()
	tender := models.Tender{
		ID: uuid.New().String(), OrganizationID: s.buyerOrg, Title: "Race", Description: "x",
		Category: "it", Currency: "CHF", Deadline: now.Add(time.Hour), Mode: models.AnonymousMode,
		Visibility: models.PublicTender, Status: models.PublishedTender, PaymentStatus: models.PaymentNone,
		CreatedBy: s.buyer.UserID, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Repos().Tenders.CreateTender(ctx, tender); err != nil {
		t.Fatal(err)
	}

	const workers = 12
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Repos().Offers.CreateOffer(ctx, models.Offer{
				ID: uuid.New().String(), TenderID: tender.ID, OrganizationID: s.bidderOrg,
				Price: decimal.NewFromInt(1000), Currency: "CHF", Documents: []string{}, Status: models.DraftOffer,
				PaymentStatus: models.PaymentNone, CreatedBy: s.bidder.UserID, CreatedAt: now, UpdatedAt: now,
			})
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, models.ErrDuplicateActiveOffer):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("created %d active offers, want 1", created)
	}
}

func TestPostgresConcurrentSubmissions(t *testing.T) {
	pool := openTestDB(t)
	s := seed(t, pool)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)
	store := repository.NewPostgresStore(pool)
	engine := services.NewEngine(store, authz.NewGuard(authz.DefaultTable), clock.Real(), notify.NewInline(repository.NewOutboxFanout(pool), entry), entry)
	tenders := services.NewTenderService(engine)
	offers := services.NewOfferService(engine)

	tender, err := tenders.CreateTender(ctx, s.buyerOrg, s.buyer, models.TenderRequest{
		Title: "Parallel", Description: "x", Category: "it",
		Deadline: time.Now().UTC().Add(time.Hour), Mode: models.ClassicMode, Visibility: models.PublicTender,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tenders.Publish(ctx, tender.ID, s.buyer); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draft, err := offers.SaveDraft(ctx, tender.ID, s.bidderOrg, s.bidder, models.OfferRequest{Price: decimal.NewFromInt(int64(1000 + i))})
			if err != nil {
				return
			}
			_, _ = offers.Submit(ctx, draft.ID, s.bidder)
		}(i)
	}
	wg.Wait()

	var active int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM offer WHERE tender_id = $1 AND status IN ('Draft', 'Submitted', 'Shortlisted', 'Accepted')`, tender.ID).Scan(&active); err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Fatalf("got %d active offers, want 1", active)
	}
	entries, err := store.Repos().EquityLog.ListEntries(ctx, tender.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := equitylog.Verify(entries); err != nil {
		t.Fatalf("chain after concurrent submissions: %v", err)
	}
}
