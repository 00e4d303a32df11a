package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupLedgerTestDB opens an in-memory SQLite database with the ledger tables.
// A single connection keeps the in-memory database alive and serializes
// transactions, which stands in for row locking.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newTestInvoice(t *testing.T, companyID uuid.UUID, total string, dueDate *time.Time) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
		CompanyID:     companyID,
		CustomerID:    uuid.New(),
		CustomerEmail: "billing@customer.test",
		InvoiceNumber: "INV-" + uuid.NewString()[:8],
		Subtotal:      valueobject.MustMoney(total),
		Tax:           valueobject.Zero(),
		DueDate:       dueDate,
		Status:        invoicing.InvoiceStatusSent,
	})
	require.NoError(t, err)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv
}

func createTestInvoice(t *testing.T, db *gorm.DB, companyID uuid.UUID, total string, dueDate *time.Time) *invoicing.Invoice {
	t.Helper()
	inv := newTestInvoice(t, companyID, total, dueDate)
	require.NoError(t, NewGormInvoiceRepository(db).Create(context.Background(), inv))
	return inv
}

func newTestPayment(inv *invoicing.Invoice, amount string, method invoicing.PaymentMethod, date time.Time) *invoicing.Payment {
	now := time.Now().UTC()
	return &invoicing.Payment{
		BaseEntity:  shared.BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		CompanyID:   inv.CompanyID,
		InvoiceID:   inv.ID,
		Amount:      valueobject.MustMoney(amount),
		Method:      method,
		PaymentDate: date,
		Status:      invoicing.PaymentStatusCompleted,
		RecordedBy:  uuid.New(),
	}
}
