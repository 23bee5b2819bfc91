// Package simulator runs the background telemetry generator. It
// periodically emits category-shaped readings for every active device
// through the same ingestion gate real devices use.
package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/profiles"
	"github.com/iliyamo/iot-device-console/internal/service"
)

// deviceState is the simulator's private schedule entry for one
// device: when to emit next, the sample sequence number and a seeded
// RNG so each device produces a stable series.
type deviceState struct {
	nextEmit time.Time
	sequence int
	rng      *rand.Rand
}

// Simulator owns its per-device scheduling state exclusively; it
// shares nothing with request handlers except the store itself, which
// it reaches through the same service operations.
type Simulator struct {
	devices  service.DeviceStore
	readings *service.ReadingService
	tick     time.Duration
	state    map[string]*deviceState
}

func New(devices service.DeviceStore, readings *service.ReadingService) *Simulator {
	return &Simulator{
		devices:  devices,
		readings: readings,
		tick:     time.Second,
		state:    make(map[string]*deviceState),
	}
}

// Run loops until the context is cancelled. Each tick reads the
// current set of active devices, drops state for devices that
// disappeared or were blocked since the last tick, and emits a
// simulated reading for every device whose schedule is due. A device
// vanishing mid-tick is skipped, never an error.
func (s *Simulator) Run(ctx context.Context) {
	logrus.Info("telemetry simulator started")
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("telemetry simulator stopped")
			return
		case <-ticker.C:
			if err := s.step(ctx); err != nil {
				logrus.WithError(err).Warn("simulator tick failed")
			}
		}
	}
}

func (s *Simulator) step(ctx context.Context) error {
	now := time.Now().UTC()
	devices, err := s.devices.ListActive(ctx)
	if err != nil {
		return err
	}

	active := make(map[string]bool, len(devices))
	for _, d := range devices {
		active[d.ID] = true
	}
	for id := range s.state {
		if !active[id] {
			delete(s.state, id)
		}
	}

	for _, device := range devices {
		st, ok := s.state[device.ID]
		if !ok {
			st = &deviceState{rng: rand.New(rand.NewSource(profiles.SeedFor(device.ID)))}
			s.state[device.ID] = st
		}
		if !st.nextEmit.IsZero() && st.nextEmit.After(now) {
			continue
		}
		profile := profiles.Resolve(device.Category)
		payload := profile.Generator(st.rng, now, st.sequence)
		payload["category"] = profile.Slug

		ts := now
		_, err := s.readings.CreateReading(ctx, device, payload, &ts, now, true, true)
		if err != nil {
			// The device may have been blocked or deleted since the
			// listing; skip it and let the next tick reconcile.
			logrus.WithError(err).WithField("device", device.ID).Debug("simulated reading dropped")
			continue
		}
		st.sequence++
		st.nextEmit = now.Add(profile.Interval(st.rng))
	}
	return nil
}

// EmitOnce generates a single simulated reading for the device,
// bypassing the schedule. Used by tests and manual tooling.
func (s *Simulator) EmitOnce(ctx context.Context, device model.Device, now time.Time) (model.Reading, error) {
	st, ok := s.state[device.ID]
	if !ok {
		st = &deviceState{rng: rand.New(rand.NewSource(profiles.SeedFor(device.ID)))}
		s.state[device.ID] = st
	}
	profile := profiles.Resolve(device.Category)
	payload := profile.Generator(st.rng, now, st.sequence)
	payload["category"] = profile.Slug
	st.sequence++
	ts := now
	return s.readings.CreateReading(ctx, device, payload, &ts, now, true, true)
}
