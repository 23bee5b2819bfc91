package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/repository"
)

// In-memory store fakes. They honor the same error contract as the SQL
// repositories (repository.ErrNotFound / repository.ErrDuplicate) and
// guard their maps so tests can exercise concurrent paths.

type memUserStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uint64]model.User)}
}

func (s *memUserStore) Create(_ context.Context, email, passwordHash string, role model.Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return 0, repository.ErrDuplicate
		}
	}
	s.nextID++
	s.users[s.nextID] = model.User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	return s.nextID, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memUserStore) Update(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, other := range s.users {
		if id != u.ID && other.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUserStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memUserStore) HasAdmin(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Role == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

type memDeviceStore struct {
	mu      sync.Mutex
	devices map[string]model.Device
}

func newMemDeviceStore() *memDeviceStore {
	return &memDeviceStore{devices: make(map[string]model.Device)}
}

func (s *memDeviceStore) Create(_ context.Context, d model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[d.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	s.devices[d.ID] = d
	return nil
}

func (s *memDeviceStore) GetByID(_ context.Context, id string) (model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return model.Device{}, repository.ErrNotFound
	}
	return d, nil
}

func (s *memDeviceStore) ListByOwner(_ context.Context, ownerID uint64) ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Device, 0)
	for _, d := range s.devices {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memDeviceStore) ListAll(_ context.Context) ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memDeviceStore) ListActive(_ context.Context) ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Device, 0)
	for _, d := range s.devices {
		if d.Status == model.DeviceActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memDeviceStore) UpdateInfo(_ context.Context, d model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.devices[d.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name = d.Name
	cur.Category = d.Category
	cur.Status = d.Status
	cur.DeactivatedAt = d.DeactivatedAt
	cur.UpdatedAt = time.Now().UTC()
	s.devices[d.ID] = cur
	return nil
}

func (s *memDeviceStore) RotateSecret(_ context.Context, id, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.SecretHash = secretHash
	d.TokenVersion++
	d.Status = model.DeviceActive
	d.DeactivatedAt = nil
	d.LastReadingAt = nil
	d.UpdatedAt = time.Now().UTC()
	s.devices[id] = d
	return nil
}

func (s *memDeviceStore) Deactivate(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = model.DeviceBlocked
	d.DeactivatedAt = &when
	d.TokenVersion++
	d.UpdatedAt = time.Now().UTC()
	s.devices[id] = d
	return nil
}

func (s *memDeviceStore) BumpTokenVersion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.TokenVersion++
	d.UpdatedAt = time.Now().UTC()
	s.devices[id] = d
	return nil
}

func (s *memDeviceStore) SetLastReading(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.LastReadingAt = &when
	s.devices[id] = d
	return nil
}

func (s *memDeviceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

type memTokenStore struct {
	mu      sync.Mutex
	nextID  uint64
	records map[string]*model.RefreshTokenRecord // key: userID:jti
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{records: make(map[string]*model.RefreshTokenRecord)}
}

func memTokenKey(userID uint64, jti string) string {
	return strconv.FormatUint(userID, 10) + ":" + jti
}

func (s *memTokenStore) Store(_ context.Context, userID uint64, jti, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memTokenKey(userID, jti)
	if _, ok := s.records[key]; ok {
		return repository.ErrDuplicate
	}
	s.nextID++
	s.records[key] = &model.RefreshTokenRecord{
		ID:        s.nextID,
		UserID:    userID,
		TokenJTI:  jti,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *memTokenStore) GetActive(_ context.Context, userID uint64, jti string) (model.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[memTokenKey(userID, jti)]
	if !ok || rec.Revoked {
		return model.RefreshTokenRecord{}, repository.ErrNotFound
	}
	return *rec, nil
}

func (s *memTokenStore) Revoke(_ context.Context, userID uint64, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[memTokenKey(userID, jti)]
	if !ok || rec.Revoked {
		return false, nil
	}
	rec.Revoked = true
	return true, nil
}

type memReadingStore struct {
	mu       sync.Mutex
	nextID   uint64
	readings []model.Reading
}

func newMemReadingStore() *memReadingStore {
	return &memReadingStore{}
}

func (s *memReadingStore) Insert(_ context.Context, rd *model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rd.ID = s.nextID
	s.readings = append(s.readings, *rd)
	return nil
}

func (s *memReadingStore) InsertBatch(_ context.Context, rds []model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rds {
		s.nextID++
		rds[i].ID = s.nextID
		s.readings = append(s.readings, rds[i])
	}
	return nil
}

func (s *memReadingStore) Latest(_ context.Context, deviceID string) (model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Reading
	for i := range s.readings {
		rd := &s.readings[i]
		if rd.DeviceID != deviceID {
			continue
		}
		if latest == nil || rd.ReceivedAt.After(latest.ReceivedAt) ||
			(rd.ReceivedAt.Equal(latest.ReceivedAt) && rd.ID > latest.ID) {
			latest = rd
		}
	}
	if latest == nil {
		return model.Reading{}, repository.ErrNotFound
	}
	return *latest, nil
}

func (s *memReadingStore) List(_ context.Context, deviceID string, limit int, since, until *time.Time) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reading, 0)
	for _, rd := range s.readings {
		if rd.DeviceID != deviceID {
			continue
		}
		if since != nil && rd.ReceivedAt.Before(*since) {
			continue
		}
		if until != nil && rd.ReceivedAt.After(*until) {
			continue
		}
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memEventStore struct {
	mu     sync.Mutex
	nextID uint64
	events []model.SecurityEvent
}

func newMemEventStore() *memEventStore {
	return &memEventStore{}
}

func (s *memEventStore) Insert(_ context.Context, ev *model.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *ev)
	return nil
}

func (s *memEventStore) ListRecent(_ context.Context, limit int) ([]model.SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SecurityEvent, len(s.events))
	copy(out, s.events)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// byType counts recorded events of one type, for asserting on the
// audit trail without depending on ordering.
func (s *memEventStore) byType(eventType string) []model.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SecurityEvent, 0)
	for _, ev := range s.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}
