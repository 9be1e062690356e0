// Package prob derives risk-neutral event probabilities from options-market
// implied volatility. All functions are pure; invalid numeric inputs are
// contract violations, never silently defaulted.
package prob

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks a non-positive price, volatility or horizon.
var ErrInvalidInput = errors.New("invalid input")

// minTYears keeps the horizon strictly positive near expiry.
const minTYears = 1e-6

const yearSeconds = 365.0 * 24 * 3600

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ProbAboveStrike is the Black-Scholes risk-neutral probability that the
// underlying finishes above strike: p = N(d2) with
// d2 = (ln(F/K) - 0.5 sigma^2 T) / (sigma sqrt(T)).
func ProbAboveStrike(forward, strike, sigma, tYears float64) (float64, error) {
	switch {
	case forward <= 0:
		return 0, fmt.Errorf("%w: forward %v", ErrInvalidInput, forward)
	case strike <= 0:
		return 0, fmt.Errorf("%w: strike %v", ErrInvalidInput, strike)
	case sigma <= 0:
		return 0, fmt.Errorf("%w: sigma %v", ErrInvalidInput, sigma)
	case tYears <= 0:
		return 0, fmt.Errorf("%w: t_years %v", ErrInvalidInput, tYears)
	}
	d2 := (math.Log(forward/strike) - 0.5*sigma*sigma*tYears) / (sigma * math.Sqrt(tYears))
	return normCDF(d2), nil
}

// ProbTouchAbove is the probability that log-price Brownian motion with the
// given drift touches an upper barrier before expiry (reflection principle).
// Returns 1 immediately when the barrier is already breached.
func ProbTouchAbove(spot, barrier, sigma, tYears, drift float64) (float64, error) {
	if spot <= 0 || barrier <= 0 {
		return 0, fmt.Errorf("%w: spot %v barrier %v", ErrInvalidInput, spot, barrier)
	}
	if spot >= barrier {
		return 1, nil
	}
	if sigma <= 0 {
		return 0, fmt.Errorf("%w: sigma %v", ErrInvalidInput, sigma)
	}
	if tYears <= 0 {
		return 0, fmt.Errorf("%w: t_years %v", ErrInvalidInput, tYears)
	}

	a := math.Log(barrier / spot)
	m := drift - 0.5*sigma*sigma
	sq := sigma * math.Sqrt(tYears)
	p := normCDF(-(a-m*tYears)/sq) + math.Exp(2*m*a/(sigma*sigma))*normCDF(-(a+m*tYears)/sq)
	return clamp01(p), nil
}

// ProbTouchBelow mirrors ProbTouchAbove for a lower barrier.
func ProbTouchBelow(spot, barrier, sigma, tYears, drift float64) (float64, error) {
	if spot <= 0 || barrier <= 0 {
		return 0, fmt.Errorf("%w: spot %v barrier %v", ErrInvalidInput, spot, barrier)
	}
	if spot <= barrier {
		return 1, nil
	}
	if sigma <= 0 {
		return 0, fmt.Errorf("%w: sigma %v", ErrInvalidInput, sigma)
	}
	if tYears <= 0 {
		return 0, fmt.Errorf("%w: t_years %v", ErrInvalidInput, tYears)
	}

	a := math.Log(spot / barrier)
	m := drift - 0.5*sigma*sigma
	sq := sigma * math.Sqrt(tYears)
	p := normCDF(-(a+m*tYears)/sq) + math.Exp(-2*m*a/(sigma*sigma))*normCDF(-(a-m*tYears)/sq)
	return clamp01(p), nil
}

// NormalizeIV accepts implied volatility quoted either as a percentage
// (55.2) or a decimal (0.552). Quotes above 3 are treated as percentages.
func NormalizeIV(iv float64) float64 {
	if iv > 3 {
		return iv / 100
	}
	return iv
}

// TimeToExpiryYears converts an expiry timestamp into year units with a
// strictly positive floor.
func TimeToExpiryYears(expiry, now time.Time) float64 {
	t := expiry.Sub(now).Seconds() / yearSeconds
	if t < minTYears {
		return minTYears
	}
	return t
}

// Framing names how an event maps onto the probability model.
type Framing string

const (
	FramingAbove        Framing = "above"
	FramingBelow        Framing = "below"
	FramingTouchAbove   Framing = "touch_above"
	FramingTouchBelow   Framing = "touch_below"
	FramingNoTouchAbove Framing = "no_touch_above"
	FramingNoTouchBelow Framing = "no_touch_below"
)

// EventProbability combines the model primitives into the probability of a
// named event framing given a raw IV quote and an expiry timestamp.
func EventProbability(framing Framing, price, level, ivQuote float64, expiry, now time.Time, drift float64) (float64, error) {
	sigma := NormalizeIV(ivQuote)
	t := TimeToExpiryYears(expiry, now)

	switch framing {
	case FramingAbove:
		return ProbAboveStrike(price, level, sigma, t)
	case FramingBelow:
		p, err := ProbAboveStrike(price, level, sigma, t)
		if err != nil {
			return 0, err
		}
		return 1 - p, nil
	case FramingTouchAbove:
		return ProbTouchAbove(price, level, sigma, t, drift)
	case FramingTouchBelow:
		return ProbTouchBelow(price, level, sigma, t, drift)
	case FramingNoTouchAbove:
		p, err := ProbTouchAbove(price, level, sigma, t, drift)
		if err != nil {
			return 0, err
		}
		return 1 - p, nil
	case FramingNoTouchBelow:
		p, err := ProbTouchBelow(price, level, sigma, t, drift)
		if err != nil {
			return 0, err
		}
		return 1 - p, nil
	default:
		return 0, fmt.Errorf("%w: framing %q", ErrInvalidInput, framing)
	}
}
