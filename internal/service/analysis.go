package service

import (
	"context"
	"fmt"
	"math"
	"time"
)

// PriceAnalysis summarizes a market's recent history: central tendency,
// spread, and a regression-slope trend direction.
type PriceAnalysis struct {
	Market     string  `json:"market"`
	Period     string  `json:"period"`
	DataPoints int     `json:"data_points"`
	Average    float64 `json:"average"`
	Minimum    float64 `json:"minimum"`
	Maximum    float64 `json:"maximum"`
	Volatility float64 `json:"volatility"`
	Trend      string  `json:"trend"`
	ChangePct  float64 `json:"change_pct"`
}

// PriceAnalysis computes historical statistics for a market over the last
// days days. Returns nil when fewer than two points exist.
func (s *Service) PriceAnalysis(ctx context.Context, market string, days int) (*PriceAnalysis, error) {
	if days <= 0 {
		days = 30
	}
	prices, err := s.store.PricesSince(ctx, market, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if len(prices) < 2 {
		return nil, nil
	}

	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.Price.InexactFloat64()
	}

	analysis := analyzePrices(values)
	analysis.Market = market
	analysis.Period = fmt.Sprintf("%d days", days)
	return analysis, nil
}

// analyzePrices computes mean, extrema, standard deviation and the simple
// linear regression slope over index order.
func analyzePrices(values []float64) *PriceAnalysis {
	n := float64(len(values))

	var sum, min, max float64
	min = values[0]
	max = values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	avg := sum / n

	var variance float64
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	variance /= n
	volatility := math.Sqrt(variance)

	var sumX, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumXY += x * v
		sumXX += x * x
	}
	slope := (n*sumXY - sumX*sum) / (n*sumXX - sumX*sumX)

	trend := "stable"
	if slope > 0.01 {
		trend = "increasing"
	} else if slope < -0.01 {
		trend = "decreasing"
	}

	changePct := 0.0
	if min != 0 {
		changePct = round2((max - min) / min * 100)
	}

	return &PriceAnalysis{
		DataPoints: len(values),
		Average:    round2(avg),
		Minimum:    min,
		Maximum:    max,
		Volatility: round2(volatility),
		Trend:      trend,
		ChangePct:  changePct,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
