package persistence_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a throwaway PostgreSQL container and applies the migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migrationsPath(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))

	return db
}

func migrationsPath(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("migrations directory not found")
	return ""
}

func TestPostgres_PostingUpdatesBalances(t *testing.T) {
	db := newPostgresDB(t)
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	publisher := event.NewOutboxPublisher(serializer)
	outboxRepo := event.NewGormOutboxRepository(db)

	accountRepo := persistence.NewGormAccountRepository(db)
	accountRepo.SetOutboxEventSaver(publisher)
	entryRepo := persistence.NewGormJournalEntryRepository(db, serializer)
	entryRepo.SetOutboxEventSaver(publisher)

	accounts := ledgerapp.NewAccountService(accountRepo, log)
	entries := ledgerapp.NewJournalEntryService(entryRepo, accountRepo, log)

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler(
		ledgerapp.NewJournalEntryPostedHandler(entryRepo, accountRepo, log),
		cache.NewInMemoryIdempotencyStore(),
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Hour, Enabled: true}),
	))
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	cfg := event.DefaultOutboxProcessorConfig()
	cfg.PollInterval = 100 * time.Millisecond
	cfg.CleanupEnabled = false
	processor := event.NewOutboxProcessor(outboxRepo, bus, serializer, cfg, log)
	require.NoError(t, processor.Start(ctx))
	t.Cleanup(func() { _ = processor.Stop(context.Background()) })

	cash, err := accounts.CreateAccount(ctx, ledgerapp.CreateAccountRequest{
		AccountNumber: "1000", Name: "Cash", AccountType: "ASSET", Currency: "USD",
	})
	require.NoError(t, err)
	sales, err := accounts.CreateAccount(ctx, ledgerapp.CreateAccountRequest{
		AccountNumber: "4000", Name: "Sales", AccountType: "REVENUE", Currency: "USD",
	})
	require.NoError(t, err)

	created, err := entries.CreateJournalEntry(ctx, ledgerapp.CreateJournalEntryRequest{
		PostingDate: "2024-03-15",
		Reference:   "INV-1001",
		Currency:    "USD",
		CreatedBy:   "alice",
		LineItems: []ledgerapp.CreateLineItemInput{
			{AccountID: cash.ID, DebitCreditIndicator: "DEBIT", Amount: decimal.RequireFromString("1200.00")},
			{AccountID: sales.ID, DebitCreditIndicator: "CREDIT", Amount: decimal.RequireFromString("1200.00")},
		},
	})
	require.NoError(t, err)
	assert.False(t, created.IsPosted)

	posted, err := entries.PostJournalEntry(ctx, created.ID, "bob")
	require.NoError(t, err)
	assert.True(t, posted.IsPosted)

	balanceOf := func(id uuid.UUID) decimal.Decimal {
		acc, err := accounts.GetAccount(ctx, id)
		if err != nil {
			return decimal.Zero
		}
		return acc.CurrentBalance.Amount()
	}

	require.Eventually(t, func() bool {
		return balanceOf(cash.ID).Equal(decimal.RequireFromString("1200")) &&
			balanceOf(sales.ID).Equal(decimal.RequireFromString("-1200"))
	}, 15*time.Second, 100*time.Millisecond, "balances were not propagated")

	var postings int64
	require.NoError(t, db.Table("account_postings").Where("journal_entry_id = ?", created.ID).Count(&postings).Error)
	assert.Equal(t, int64(2), postings)

	_, err = entries.PostJournalEntry(ctx, created.ID, "bob")
	assert.True(t, shared.IsStateError(err), "got %v", err)
}

func TestPostgres_DuplicateAccountNumber(t *testing.T) {
	db := newPostgresDB(t)
	accounts := ledgerapp.NewAccountService(persistence.NewGormAccountRepository(db), zaptest.NewLogger(t))
	ctx := context.Background()

	req := ledgerapp.CreateAccountRequest{AccountNumber: "2000", Name: "Payables", AccountType: "LIABILITY", Currency: "USD"}
	_, err := accounts.CreateAccount(ctx, req)
	require.NoError(t, err)

	_, err = accounts.CreateAccount(ctx, req)
	assert.True(t, shared.IsConflictError(err), "got %v", err)
}
