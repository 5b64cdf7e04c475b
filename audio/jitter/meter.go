// SPDX-License-Identifier: MPL-2.0

// Package jitter implements the sliding-window jitter statistics pipeline
// from spec.md §4.3: mean jitter, a leaky-peak-detector envelope, and a
// moving-quantile-derived peak jitter robust to occasional outliers.
package jitter

import (
	"math"
	"time"

	"github.com/rocwire/rocwire/config"
	"github.com/rs/zerolog"
)

// Metrics are the jitter statistics exposed to the latency tuner
// (spec.md §4.3's three-metric contract, plus the last raw sample).
type Metrics struct {
	MeanJitter   time.Duration
	PeakJitter   time.Duration
	CurrJitter   time.Duration
	CurrEnvelope time.Duration
}

// Meter is the five-stage jitter statistics pipeline described in
// spec.md §4.3, grounded on `roc_audio::JitterMeter`.
type Meter struct {
	cfg config.JitterMeterConfig
	log zerolog.Logger

	metrics Metrics

	jitterWindow   *movAggregate
	smoothWindow   *movAggregate
	envelopeWindow *movQuantile
	peakWindow     *movAggregate

	capacitorCharge     float64
	capacitorResistance float64
	capacitorIteration  float64
}

// NewMeter constructs a Meter. cfg must already have DeduceDefaults
// applied.
func NewMeter(cfg config.JitterMeterConfig, log zerolog.Logger) *Meter {
	return &Meter{
		cfg:            cfg,
		log:            log.With().Str("component", "audio.jitter").Logger(),
		jitterWindow:   newMovAggregate(cfg.JitterWindow),
		smoothWindow:   newMovAggregate(cfg.EnvelopeSmoothingWindowLen),
		envelopeWindow: newMovQuantile(cfg.PeakQuantileWindow, cfg.PeakQuantileCoeff),
		peakWindow:     newMovAggregate(cfg.JitterWindow),
	}
}

// Metrics returns the most recently computed jitter metrics.
func (m *Meter) Metrics() Metrics { return m.metrics }

// UpdateJitter folds one packet's arrival jitter sample into the
// pipeline (spec.md §4.3's five-stage algorithm).
func (m *Meter) UpdateJitter(jitter time.Duration) {
	j := float64(jitter)

	m.jitterWindow.add(j)

	m.smoothWindow.add(j)
	envelope := m.updateEnvelope(m.smoothWindow.movMax(), m.jitterWindow.movAvg())

	m.envelopeWindow.add(envelope)
	m.peakWindow.add(m.envelopeWindow.movQuantileValue())

	m.metrics = Metrics{
		MeanJitter:   time.Duration(m.jitterWindow.movAvg()),
		PeakJitter:   time.Duration(m.peakWindow.movMax()),
		CurrJitter:   jitter,
		CurrEnvelope: time.Duration(envelope),
	}
}

// updateEnvelope models a leaky peak detector ("capacitor"): an instant
// recharge on a new peak, exponential discharge otherwise, per spec.md
// §4.3 step 3.
func (m *Meter) updateEnvelope(curJitter, avgJitter float64) float64 {
	switch {
	case m.capacitorCharge < curJitter:
		m.capacitorCharge = curJitter
		if avgJitter > 0 {
			m.capacitorResistance = math.Pow(curJitter/avgJitter, m.cfg.EnvelopeResistanceExponent) * m.cfg.EnvelopeResistanceCoeff
		} else {
			m.capacitorResistance = m.cfg.EnvelopeResistanceCoeff
		}
		m.capacitorIteration = 0
	case m.capacitorCharge > 0:
		if m.capacitorResistance > 0 {
			m.capacitorCharge *= math.Exp(-m.capacitorIteration / m.capacitorResistance)
		}
		m.capacitorIteration++
	}
	if m.capacitorCharge < 0 {
		m.capacitorCharge = 0
	}
	return m.capacitorCharge
}
