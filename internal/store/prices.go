package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eiim/monitor/pkg/models"
)

// priceDedupWindow is the minimum spacing between stored points per market.
const priceDedupWindow = 5 * time.Minute

// InsertPrice stores a price point unless the market already has one within
// the dedup window. It returns false when the write was skipped.
func (p *PgStore) InsertPrice(ctx context.Context, cp *models.CarbonPrice) (bool, error) {
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}

	var exists bool
	err := p.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM carbon_prices WHERE market = $1 AND timestamp > $2)",
		cp.Market, cp.Timestamp.Add(-priceDedupWindow))
	if err != nil {
		return false, fmt.Errorf("check recent price: %w", err)
	}
	if exists {
		return false, nil
	}

	_, err = p.db.ExecContext(ctx, `
INSERT INTO carbon_prices (id, market, price, volume, currency, timestamp, data_source)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, cp.ID, cp.Market, cp.Price, cp.Volume, cp.Currency, cp.Timestamp, cp.DataSource)
	if err != nil {
		return false, fmt.Errorf("insert price market=%s: %w", cp.Market, err)
	}
	return true, nil
}

// LatestPrices returns the most recent point per market.
func (p *PgStore) LatestPrices(ctx context.Context) ([]*models.CarbonPrice, error) {
	rows := []*models.CarbonPrice{}
	query := `
SELECT DISTINCT ON (market) id, market, price, volume, currency, timestamp, data_source
FROM carbon_prices
ORDER BY market, timestamp DESC
`
	err := p.db.SelectContext(ctx, &rows, query)
	return rows, err
}

// PricesSince returns a market's points from since onward, oldest first.
func (p *PgStore) PricesSince(ctx context.Context, market string, since time.Time) ([]*models.CarbonPrice, error) {
	rows := []*models.CarbonPrice{}
	query := `
SELECT id, market, price, volume, currency, timestamp, data_source
FROM carbon_prices
WHERE market = $1 AND timestamp >= $2
ORDER BY timestamp ASC
`
	err := p.db.SelectContext(ctx, &rows, query, market, since)
	return rows, err
}

// Prices lists recent points across all markets, newest first.
func (p *PgStore) Prices(ctx context.Context, market string, limit int) ([]*models.CarbonPrice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows := []*models.CarbonPrice{}
	if market != "" {
		query := `
SELECT id, market, price, volume, currency, timestamp, data_source
FROM carbon_prices
WHERE market = $1
ORDER BY timestamp DESC
LIMIT $2
`
		err := p.db.SelectContext(ctx, &rows, query, market, limit)
		return rows, err
	}
	query := `
SELECT id, market, price, volume, currency, timestamp, data_source
FROM carbon_prices
ORDER BY timestamp DESC
LIMIT $1
`
	err := p.db.SelectContext(ctx, &rows, query, limit)
	return rows, err
}
