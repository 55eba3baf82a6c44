// Package storetest builds throwaway SQLite stores for service tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

// NewSQLite returns a migrated SQLite store in a temp dir, closed on cleanup.
func NewSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "fieldops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// Seeded returns a store loaded with f after Validate fills its defaults.
func Seeded(t *testing.T, f *store.Fixtures) *store.SQLiteStore {
	t.Helper()
	s := NewSQLite(t)
	require.NoError(t, f.Validate())
	require.NoError(t, s.ImportFixtures(context.Background(), f))
	return s
}

// Base is a rep, a manager, one active dealer (d-1) and one product (p-1)
// priced at 100.00.
func Base() *store.Fixtures {
	return &store.Fixtures{
		SalesPersons: []model.SalesPerson{
			{ID: "sp-1", Code: "REP01", Name: "Ravi Kumar", Role: model.RoleRep, Active: true},
			{ID: "sp-mgr", Code: "MGR01", Name: "Anita Desai", Role: model.RoleManager, TelegramChatID: "555001", Active: true},
		},
		Dealers: []model.Dealer{
			{ID: "d-1", Code: "DLR001", Name: "Sharma Traders", Category: "A", City: "Pune",
				CreditLimit: decimal.NewFromInt(500000), CreditDays: 30, SalesPersonID: "sp-1"},
		},
		Products: []model.Product{
			{ID: "p-1", Code: "CEM-OPC53", Name: "OPC 53 Grade Cement", ShortName: "OPC 53",
				DealerPrice: decimal.NewFromInt(100), MRP: decimal.NewFromInt(120), ReorderLevel: 50},
		},
	}
}

// Commitment builds a fixture commitment for d-1/p-1.
func Commitment(id string, promised, converted int, expected string) model.Commitment {
	return model.Commitment{
		ID:                id,
		DealerID:          "d-1",
		SalesPersonID:     "sp-1",
		ProductID:         "p-1",
		QuantityPromised:  promised,
		ConvertedQuantity: converted,
		CommitmentDate:    "2026-01-01",
		ExpectedOrderDate: expected,
		Confidence:        0.8,
		Status:            model.StatusFor(promised, converted),
	}
}
