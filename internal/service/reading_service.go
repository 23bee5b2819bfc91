package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/repository"
)

// ReadingService is the ingestion gate in front of the readings
// store, plus the owner-scoped query side. Incoming readings pass the
// payload size check first and the per-device interval check second;
// the two limits are independent.
type ReadingService struct {
	readings ReadingStore
	devices  DeviceStore
	log      *SecurityLogger

	payloadLimit int
	minInterval  time.Duration
	maxPage      int
}

func NewReadingService(readings ReadingStore, devices DeviceStore, log *SecurityLogger, payloadLimit int, minInterval time.Duration, maxPage int) *ReadingService {
	return &ReadingService{
		readings:     readings,
		devices:      devices,
		log:          log,
		payloadLimit: payloadLimit,
		minInterval:  minInterval,
		maxPage:      maxPage,
	}
}

// ReadingMeta summarizes the stored readings of one device.
type ReadingMeta struct {
	TotalReadings    int
	LatestReceivedAt *time.Time
	OldestReceivedAt *time.Time
}

// Sample is one pre-dated payload for the seeding path.
type Sample struct {
	At      time.Time
	Payload map[string]any
}

func (s *ReadingService) ensureOwner(device model.Device, requester model.User) error {
	if !requester.IsAdmin() && device.OwnerID != requester.ID {
		return fmt.Errorf("%w: no access to device readings", ErrForbidden)
	}
	return nil
}

// CreateReading accepts one reading for the device. receivedAt of
// zero means "now"; force skips the interval check (seeding and
// simulation only); markSimulated stamps the payload with the
// simulator marker.
//
// Order of checks: payload size first, always; then, unless forced,
// the elapsed time since the device's last accepted reading. The
// interval check is waived when the most recent persisted reading is
// itself simulated, so real traffic immediately overrides stale
// simulated history instead of waiting out the interval.
func (s *ReadingService) CreateReading(
	ctx context.Context,
	device model.Device,
	payload map[string]any,
	deviceTimestamp *time.Time,
	receivedAt time.Time,
	force bool,
	markSimulated bool,
) (model.Reading, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.Reading{}, err
	}
	size := len(body)
	if size > s.payloadLimit {
		s.log.Record(model.ActorDevice, device.ID, "reading_reject", model.EventDenied, "payload over limit")
		return model.Reading{}, fmt.Errorf("%w: payload exceeds %d bytes", ErrPayloadTooLarge, s.payloadLimit)
	}

	now := receivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if !force && device.LastReadingAt != nil && now.Sub(*device.LastReadingAt) < s.minInterval {
		latest, err := s.readings.Latest(ctx, device.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return model.Reading{}, err
		}
		if err != nil || !latest.Simulated() {
			s.log.Record(model.ActorDevice, device.ID, "reading_rate_limit", model.EventDenied, "minimum interval not elapsed")
			return model.Reading{}, fmt.Errorf("%w: retry after %s", ErrRateLimited, s.minInterval)
		}
	}

	if markSimulated {
		marked := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			marked[k] = v
		}
		marked[model.SimulatedMarker] = true
		if body, err = json.Marshal(marked); err != nil {
			return model.Reading{}, err
		}
	}

	rd := model.Reading{
		DeviceID:        device.ID,
		DeviceTimestamp: deviceTimestamp,
		ReceivedAt:      now,
		Payload:         body,
		PayloadSize:     size,
	}
	if err := s.readings.Insert(ctx, &rd); err != nil {
		return model.Reading{}, err
	}
	if err := s.devices.SetLastReading(ctx, device.ID, now); err != nil {
		return model.Reading{}, err
	}
	s.log.Record(model.ActorDevice, device.ID, "reading_accept", model.EventSuccess, "")
	return rd, nil
}

// ListReadings returns readings for the device, newest first, with
// owner-or-admin access control. Simulated readings are filtered out
// unless includeSimulated is set. The limit is clamped to the
// configured page cap.
func (s *ReadingService) ListReadings(
	ctx context.Context,
	device model.Device,
	requester model.User,
	limit int,
	since, until *time.Time,
	includeSimulated bool,
) ([]model.Reading, error) {
	if err := s.ensureOwner(device, requester); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxPage {
		limit = s.maxPage
	}
	readings, err := s.readings.List(ctx, device.ID, limit, since, until)
	if err != nil {
		return nil, err
	}
	if includeSimulated {
		return readings, nil
	}
	real := make([]model.Reading, 0, len(readings))
	for _, rd := range readings {
		if !rd.Simulated() {
			real = append(real, rd)
		}
	}
	return real, nil
}

// Meta returns reading counts and the newest/oldest received
// timestamps for the device, honoring the simulated filter.
func (s *ReadingService) Meta(
	ctx context.Context,
	device model.Device,
	requester model.User,
	since, until *time.Time,
	includeSimulated bool,
) (ReadingMeta, error) {
	if err := s.ensureOwner(device, requester); err != nil {
		return ReadingMeta{}, err
	}
	readings, err := s.readings.List(ctx, device.ID, 0, since, until)
	if err != nil {
		return ReadingMeta{}, err
	}
	if !includeSimulated {
		real := readings[:0]
		for _, rd := range readings {
			if !rd.Simulated() {
				real = append(real, rd)
			}
		}
		readings = real
	}
	meta := ReadingMeta{TotalReadings: len(readings)}
	if len(readings) > 0 {
		latest := readings[0].ReceivedAt
		oldest := readings[len(readings)-1].ReceivedAt
		meta.LatestReceivedAt = &latest
		meta.OldestReceivedAt = &oldest
	}
	return meta, nil
}

// SeedSamples bulk-inserts pre-dated simulated readings for a fresh
// device, bypassing both limits, and advances the device's
// last-reading stamp to the newest sample.
func (s *ReadingService) SeedSamples(ctx context.Context, device model.Device, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].At.Before(samples[j].At) })

	readings := make([]model.Reading, 0, len(samples))
	for _, sample := range samples {
		payload := make(map[string]any, len(sample.Payload)+1)
		for k, v := range sample.Payload {
			payload[k] = v
		}
		payload[model.SimulatedMarker] = true
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		at := sample.At
		readings = append(readings, model.Reading{
			DeviceID:        device.ID,
			DeviceTimestamp: &at,
			ReceivedAt:      at,
			Payload:         body,
			PayloadSize:     len(body),
		})
	}
	if err := s.readings.InsertBatch(ctx, readings); err != nil {
		return err
	}
	last := readings[len(readings)-1].ReceivedAt
	if err := s.devices.SetLastReading(ctx, device.ID, last); err != nil {
		return err
	}
	s.log.Record(model.ActorSystem, device.ID, "reading_seed", model.EventSuccess,
		fmt.Sprintf("seeded %d sample readings", len(readings)))
	return nil
}
