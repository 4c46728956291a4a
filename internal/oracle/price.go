package oracle

import "math"

// Price returns the deterministic price for a pair seed at a unix timestamp
// (seconds, fractional allowed). The same (seed, ts) always yields the same
// value, so any party holding the seed can recompute entry and exit prices
// independently. No randomness is sampled here or anywhere downstream.
func Price(seed int64, ts float64) float64 {
	t := ts / 60.0 // minutes scale

	// baseline differs per pair so they trade at different levels
	base := 1.0 + float64(seed%1000)/1000.0*0.5

	// slow daily wave
	w1 := math.Sin(t*2*math.Pi/1440.0+float64(seed%17)) * 0.0025

	// medium hourly wave
	w2 := math.Sin(t*2*math.Pi/60.0+float64(seed%23)) * 0.0015

	// bounded jitter derived from the whole-second timestamp
	jitter := (float64((int64(ts)^seed)%1000)/1000.0 - 0.5) * 0.0008

	return base + w1 + w2 + jitter
}

type Point struct {
	Timestamp int64   `json:"ts"`
	Price     float64 `json:"price"`
}

// Series samples the price every step seconds over [from, to] inclusive.
// Stateless: callers pass the same (seed, from, to, step) and get the same
// series back, so price history never needs storing.
func Series(seed int64, from, to, step int64) []Point {
	if step <= 0 {
		step = 60
	}
	if to < from {
		return nil
	}

	points := make([]Point, 0, (to-from)/step+1)
	for ts := from; ts <= to; ts += step {
		points = append(points, Point{Timestamp: ts, Price: Price(seed, float64(ts))})
	}
	return points
}
