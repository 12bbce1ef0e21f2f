package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/eiim/monitor/pkg/models"
)

func TestInsertPriceSkipsWithinDedupWindow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	ts := time.Date(2026, time.August, 17, 10, 0, 0, 0, time.UTC)

	// The recency check must look back exactly the dedup window.
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM carbon_prices WHERE market = \$1 AND timestamp > \$2\)`).
		WithArgs("eu_ets", ts.Add(-5*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	inserted, err := s.InsertPrice(context.Background(), &models.CarbonPrice{
		Market:    "eu_ets",
		Price:     decimal.RequireFromString("85.50"),
		Currency:  "EUR",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("insert price: %v", err)
	}
	if inserted {
		t.Fatal("point within the dedup window must be skipped, not inserted")
	}
}

func TestInsertPriceWritesOutsideDedupWindow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	ts := time.Date(2026, time.August, 17, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM carbon_prices WHERE market = \$1 AND timestamp > \$2\)`).
		WithArgs("rggi", ts.Add(-5*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO carbon_prices \(id, market, price, volume, currency, timestamp, data_source\)`).
		WithArgs(sqlmock.AnyArg(), "rggi", sqlmock.AnyArg(), int64(9_000_000), "USD", ts, "simulated").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cp := &models.CarbonPrice{
		Market:     "rggi",
		Price:      decimal.RequireFromString("13.45"),
		Volume:     9_000_000,
		Currency:   "USD",
		Timestamp:  ts,
		DataSource: "simulated",
	}
	inserted, err := s.InsertPrice(context.Background(), cp)
	if err != nil {
		t.Fatalf("insert price: %v", err)
	}
	if !inserted {
		t.Fatal("first point for the window must be inserted")
	}
	if cp.ID == "" {
		t.Fatal("insert must assign an id")
	}
}
