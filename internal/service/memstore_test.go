package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/config"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

// memState is the whole dataset of a memStore. InTx snapshots it and puts
// the snapshot back when the transaction fails.
type memState struct {
	users      map[string]models.User
	sessions   map[string]models.Session
	secrets    map[string]string
	devices    map[int64]models.Device
	attributes map[int64]models.Attribute
	tags       map[int64]models.Tag
	shares     map[string]models.Share
	cooldowns  map[string]time.Time
	nextID     int64
}

func newMemState() *memState {
	return &memState{
		users:      map[string]models.User{},
		sessions:   map[string]models.Session{},
		secrets:    map[string]string{},
		devices:    map[int64]models.Device{},
		attributes: map[int64]models.Attribute{},
		tags:       map[int64]models.Tag{},
		shares:     map[string]models.Share{},
		cooldowns:  map[string]time.Time{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:      maps.Clone(s.users),
		sessions:   maps.Clone(s.sessions),
		secrets:    maps.Clone(s.secrets),
		devices:    maps.Clone(s.devices),
		attributes: maps.Clone(s.attributes),
		tags:       maps.Clone(s.tags),
		shares:     maps.Clone(s.shares),
		cooldowns:  maps.Clone(s.cooldowns),
		nextID:     s.nextID,
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memStore implements repository.Store in memory. fail injects an error
// into the named operation, for example "tags.Delete".
type memStore struct {
	st   *memState
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{st: newMemState(), fail: map[string]error{}}
}

func (m *memStore) injected(op string) error {
	return m.fail[op]
}

func (m *memStore) Users() repository.UserStore           { return memUsers{m} }
func (m *memStore) Devices() repository.DeviceStore       { return memDevices{m} }
func (m *memStore) Attributes() repository.AttributeStore { return memAttributes{m} }
func (m *memStore) Tags() repository.TagStore             { return memTags{m} }
func (m *memStore) Shares() repository.ShareStore         { return memShares{m} }
func (m *memStore) Sessions() repository.SessionStore     { return memSessions{m} }
func (m *memStore) TwoFactor() repository.TwoFactorStore  { return memTwoFactor{m} }
func (m *memStore) Cooldowns() repository.CooldownStore   { return memCooldowns{m} }

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	snapshot := m.st.clone()
	if err := fn(m); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, user models.User) error {
	for _, u := range r.m.st.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.m.st.users[user.ID] = user
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	u, ok := r.m.st.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	for _, u := range r.m.st.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (r memUsers) FindBySubdomain(ctx context.Context, subdomain string) (models.User, error) {
	for _, u := range r.m.st.users {
		if u.Subdomain != nil && *u.Subdomain == subdomain {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (r memUsers) List(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	users := slices.Collect(maps.Values(r.m.st.users))
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := len(users)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return users[offset:end], total, nil
}

func (r memUsers) update(id string, fn func(u *models.User)) error {
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	r.m.st.users[id] = u
	return nil
}

func (r memUsers) UpdateProfile(ctx context.Context, id string, name string, description string) error {
	return r.update(id, func(u *models.User) {
		u.Name = name
		u.Description = description
	})
}

func (r memUsers) UpdateEmail(ctx context.Context, id string, email string) error {
	for _, u := range r.m.st.users {
		if u.Email == email && u.ID != id {
			return repository.ErrEmailTaken
		}
	}
	return r.update(id, func(u *models.User) { u.Email = email })
}

func (r memUsers) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r memUsers) UpdateImage(ctx context.Context, id string, image *string) error {
	return r.update(id, func(u *models.User) { u.Image = image })
}

func (r memUsers) SetSubdomain(ctx context.Context, id string, subdomain *string, shareID *string) error {
	if err := r.m.injected("users.SetSubdomain"); err != nil {
		return err
	}
	if subdomain != nil {
		for _, u := range r.m.st.users {
			if u.ID != id && u.Subdomain != nil && *u.Subdomain == *subdomain {
				return repository.ErrSubdomainTaken
			}
		}
	}
	return r.update(id, func(u *models.User) {
		u.Subdomain = subdomain
		u.SubdomainShareID = shareID
		if subdomain == nil {
			u.DiscordVerifyToken = nil
		}
	})
}

func (r memUsers) SetDiscordToken(ctx context.Context, id string, token *string) error {
	return r.update(id, func(u *models.User) { u.DiscordVerifyToken = token })
}

func (r memUsers) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	return r.update(id, func(u *models.User) { u.TwoFactorEnabled = enabled })
}

func (r memUsers) UpdateStatus(ctx context.Context, id string, status models.UserStatus, reason *string) error {
	return r.update(id, func(u *models.User) {
		u.Status = status
		u.SuspendReason = reason
	})
}

func (r memUsers) SetBanned(ctx context.Context, id string, banned bool, reason *string) error {
	return r.update(id, func(u *models.User) {
		u.Banned = banned
		u.BanReason = reason
	})
}

func (r memUsers) Delete(ctx context.Context, id string) error {
	st := r.m.st
	if _, ok := st.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(st.users, id)
	delete(st.secrets, id)
	maps.DeleteFunc(st.sessions, func(_ string, s models.Session) bool { return s.UserID == id })
	maps.DeleteFunc(st.devices, func(_ int64, d models.Device) bool { return d.UserID == id })
	maps.DeleteFunc(st.attributes, func(_ int64, a models.Attribute) bool { return a.UserID == id })
	maps.DeleteFunc(st.tags, func(_ int64, t models.Tag) bool { return t.UserID == id })
	maps.DeleteFunc(st.shares, func(_ string, s models.Share) bool { return s.UserID == id })
	return nil
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(ctx context.Context, session models.Session) error {
	maps.DeleteFunc(r.m.st.sessions, func(_ string, s models.Session) bool {
		return s.UserID == session.UserID && s.DeviceID == session.DeviceID
	})
	session.CreatedAt = time.Unix(r.m.st.id(), 0)
	r.m.st.sessions[session.ID] = session
	return nil
}

func (r memSessions) byUser(userID string) []models.Session {
	var out []models.Session
	for _, s := range r.m.st.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memSessions) CountByUser(ctx context.Context, userID string) (int, error) {
	return len(r.byUser(userID)), nil
}

func (r memSessions) DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error {
	sessions := r.byUser(userID)
	for i := 0; i < len(sessions)-keepLatest; i++ {
		delete(r.m.st.sessions, sessions[i].ID)
	}
	return nil
}

func (r memSessions) GetByID(ctx context.Context, id string) (models.Session, error) {
	s, ok := r.m.st.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (r memSessions) DeleteByID(ctx context.Context, id string) error {
	delete(r.m.st.sessions, id)
	return nil
}

func (r memSessions) DeleteByDevice(ctx context.Context, userID string, deviceID string) error {
	maps.DeleteFunc(r.m.st.sessions, func(_ string, s models.Session) bool {
		return s.UserID == userID && s.DeviceID == deviceID
	})
	return nil
}

func (r memSessions) DeleteByUser(ctx context.Context, userID string) error {
	maps.DeleteFunc(r.m.st.sessions, func(_ string, s models.Session) bool { return s.UserID == userID })
	return nil
}

func (r memSessions) FindByRefreshHash(ctx context.Context, userID string, refreshHash []byte) (models.Session, error) {
	for _, s := range r.byUser(userID) {
		if bytes.Equal(s.RefreshTokenHash, refreshHash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (r memSessions) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	return r.byUser(userID), nil
}

func (r memSessions) Touch(ctx context.Context, sessionID string, ip string, userAgent string) error {
	return nil
}

type memTwoFactor struct{ m *memStore }

func (r memTwoFactor) SaveSecret(ctx context.Context, userID string, secret string) error {
	r.m.st.secrets[userID] = secret
	return nil
}

func (r memTwoFactor) GetSecret(ctx context.Context, userID string) (string, error) {
	secret, ok := r.m.st.secrets[userID]
	if !ok {
		return "", repository.ErrSecretNotFound
	}
	return secret, nil
}

type memDevices struct{ m *memStore }

func (r memDevices) Count(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, d := range r.m.st.devices {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memDevices) Get(ctx context.Context, userID string, id int64) (models.Device, error) {
	d, ok := r.m.st.devices[id]
	if !ok || d.UserID != userID {
		return models.Device{}, repository.ErrDeviceNotFound
	}
	return d, nil
}

func (r memDevices) Insert(ctx context.Context, device models.Device) (models.Device, error) {
	device.ID = r.m.st.id()
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt
	if device.TagIDs == nil {
		device.TagIDs = []int64{}
	}
	if device.InternalImages == nil {
		device.InternalImages = []string{}
	}
	if device.ExternalImages == nil {
		device.ExternalImages = []string{}
	}
	r.m.st.devices[device.ID] = device
	return device, nil
}

func (r memDevices) Update(ctx context.Context, device models.Device) error {
	existing, ok := r.m.st.devices[device.ID]
	if !ok || existing.UserID != device.UserID {
		return repository.ErrDeviceNotFound
	}
	device.UpdatedAt = time.Now()
	r.m.st.devices[device.ID] = device
	return nil
}

func (r memDevices) SetInternalImages(ctx context.Context, id int64, images []string) error {
	d, ok := r.m.st.devices[id]
	if !ok {
		return repository.ErrDeviceNotFound
	}
	d.InternalImages = images
	r.m.st.devices[id] = d
	return nil
}

func (r memDevices) SetTags(ctx context.Context, id int64, tagIDs []int64) error {
	d, ok := r.m.st.devices[id]
	if !ok {
		return repository.ErrDeviceNotFound
	}
	d.TagIDs = tagIDs
	r.m.st.devices[id] = d
	return nil
}

func (r memDevices) Delete(ctx context.Context, userID string, id int64) error {
	d, ok := r.m.st.devices[id]
	if !ok || d.UserID != userID {
		return repository.ErrDeviceNotFound
	}
	delete(r.m.st.devices, id)
	maps.DeleteFunc(r.m.st.shares, func(_ string, s models.Share) bool {
		single, ok := s.Visibility.(models.SingleDevice)
		return ok && single.DeviceID == id
	})
	return nil
}

func (r memDevices) List(ctx context.Context, userID string, q models.DeviceQuery) (models.DevicePage, error) {
	var matched []models.Device
	for _, d := range r.m.st.devices {
		if d.UserID == userID && matchDevice(d, q.Filter) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case models.SortNameDesc:
			return strings.ToLower(a.Name) > strings.ToLower(b.Name)
		case models.SortDateAsc:
			return a.ID < b.ID
		case models.SortDateDesc:
			return a.ID > b.ID
		case models.SortUpdatedDesc:
			return a.UpdatedAt.After(b.UpdatedAt)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	})

	total := len(matched)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return models.DevicePage{Devices: matched[start:end], Total: total}, nil
}

func matchDevice(d models.Device, f models.DeviceFilter) bool {
	if f.DeviceIDs != nil && !slices.Contains(f.DeviceIDs, d.ID) {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(f.Name)) {
		return false
	}
	for kind, ids := range f.Attributes {
		if len(ids) == 0 {
			continue
		}
		ref := d.Attributes.Get(kind)
		if ref == nil || !slices.Contains(ids, *ref) {
			return false
		}
	}
	if len(f.TagIDs) > 0 && !slices.ContainsFunc(f.TagIDs, func(id int64) bool { return slices.Contains(d.TagIDs, id) }) {
		return false
	}
	return true
}

func (r memDevices) ListByTag(ctx context.Context, userID string, tagID int64) ([]models.Device, error) {
	var out []models.Device
	for _, d := range r.m.st.devices {
		if d.UserID == userID && slices.Contains(d.TagIDs, tagID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r memDevices) IDsByUser(ctx context.Context, userID string) ([]int64, error) {
	var out []int64
	for _, d := range r.m.st.devices {
		if d.UserID == userID {
			out = append(out, d.ID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r memDevices) ReferencesAttribute(ctx context.Context, userID string, kind models.AttributeKind, attributeID int64) (bool, error) {
	for _, d := range r.m.st.devices {
		if ref := d.Attributes.Get(kind); d.UserID == userID && ref != nil && *ref == attributeID {
			return true, nil
		}
	}
	return false, nil
}

type memAttributes struct{ m *memStore }

func (r memAttributes) FindOrCreate(ctx context.Context, userID string, kind models.AttributeKind, value string, displayName string) (models.Attribute, error) {
	for _, a := range r.m.st.attributes {
		if a.UserID == userID && a.Kind == kind && a.Value == value {
			return a, nil
		}
	}
	attr := models.Attribute{ID: r.m.st.id(), UserID: userID, Kind: kind, Value: value, DisplayName: displayName}
	r.m.st.attributes[attr.ID] = attr
	return attr, nil
}

func (r memAttributes) Delete(ctx context.Context, userID string, kind models.AttributeKind, id int64) error {
	a, ok := r.m.st.attributes[id]
	if !ok || a.UserID != userID || a.Kind != kind {
		return repository.ErrAttributeNotFound
	}
	delete(r.m.st.attributes, id)
	return nil
}

func (r memAttributes) ListByUser(ctx context.Context, userID string) ([]models.Attribute, error) {
	var out []models.Attribute
	for _, a := range r.m.st.attributes {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAttributes) Filters(ctx context.Context, userID string) (map[models.AttributeKind][]models.FilterOption, error) {
	out := make(map[models.AttributeKind][]models.FilterOption, len(models.AttributeKinds))
	for _, kind := range models.AttributeKinds {
		counts := map[int64]int{}
		for _, d := range r.m.st.devices {
			if ref := d.Attributes.Get(kind); d.UserID == userID && ref != nil {
				counts[*ref]++
			}
		}
		options := []models.FilterOption{}
		for id, n := range counts {
			options = append(options, models.FilterOption{ID: id, DisplayName: r.m.st.attributes[id].DisplayName, Count: n})
		}
		sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
		out[kind] = options
	}
	return out, nil
}

type memTags struct{ m *memStore }

func (r memTags) Count(ctx context.Context, userID string) (int, error) {
	tags, _ := r.ListByUser(ctx, userID)
	return len(tags), nil
}

func (r memTags) Get(ctx context.Context, userID string, id int64) (models.Tag, error) {
	t, ok := r.m.st.tags[id]
	if !ok || t.UserID != userID {
		return models.Tag{}, repository.ErrTagNotFound
	}
	return t, nil
}

func (r memTags) ListByUser(ctx context.Context, userID string) ([]models.Tag, error) {
	var out []models.Tag
	for _, t := range r.m.st.tags {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r memTags) FilterOwned(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		if t, ok := r.m.st.tags[id]; ok && t.UserID == userID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r memTags) Insert(ctx context.Context, tag models.Tag) (models.Tag, error) {
	tag.ID = r.m.st.id()
	r.m.st.tags[tag.ID] = tag
	return tag, nil
}

func (r memTags) Update(ctx context.Context, tag models.Tag) error {
	if _, err := r.Get(ctx, tag.UserID, tag.ID); err != nil {
		return err
	}
	r.m.st.tags[tag.ID] = tag
	return nil
}

func (r memTags) Delete(ctx context.Context, userID string, id int64) error {
	if err := r.m.injected("tags.Delete"); err != nil {
		return err
	}
	if _, err := r.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(r.m.st.tags, id)
	return nil
}

type memShares struct{ m *memStore }

func (r memShares) Get(ctx context.Context, id string) (models.Share, error) {
	s, ok := r.m.st.shares[id]
	if !ok {
		return models.Share{}, repository.ErrShareNotFound
	}
	return s, nil
}

func (r memShares) Insert(ctx context.Context, share models.Share) (models.Share, error) {
	if _, ok := r.m.st.shares[share.ID]; ok {
		return models.Share{}, repository.ErrShareIDTaken
	}
	share.CreatedAt = time.Now()
	r.m.st.shares[share.ID] = share
	return share, nil
}

func (r memShares) ListVisible(ctx context.Context, userID string) ([]models.Share, error) {
	var out []models.Share
	for _, s := range r.m.st.shares {
		if s.UserID == userID && !s.Internal {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memShares) DeleteVisible(ctx context.Context, userID string, id string) error {
	s, ok := r.m.st.shares[id]
	if !ok || s.UserID != userID || s.Internal {
		return repository.ErrShareNotFound
	}
	delete(r.m.st.shares, id)
	return nil
}

func (r memShares) DeleteAllVisible(ctx context.Context, userID string) (int64, error) {
	var n int64
	maps.DeleteFunc(r.m.st.shares, func(_ string, s models.Share) bool {
		hit := s.UserID == userID && !s.Internal
		if hit {
			n++
		}
		return hit
	})
	return n, nil
}

func (r memShares) GetInternal(ctx context.Context, userID string) (models.Share, error) {
	for _, s := range r.m.st.shares {
		if s.UserID == userID && s.Internal {
			return s, nil
		}
	}
	return models.Share{}, repository.ErrShareNotFound
}

func (r memShares) DeleteInternal(ctx context.Context, userID string) error {
	maps.DeleteFunc(r.m.st.shares, func(_ string, s models.Share) bool { return s.UserID == userID && s.Internal })
	return nil
}

type memCooldowns struct{ m *memStore }

func (r memCooldowns) Stamp(ctx context.Context, userID string, class models.ActionClass, now time.Time, interval time.Duration) (bool, time.Time, error) {
	key := userID + "|" + string(class)
	last, ok := r.m.st.cooldowns[key]
	if ok && last.After(now.Add(-interval)) {
		return false, last, nil
	}
	r.m.st.cooldowns[key] = now
	return true, now, nil
}

// memObjects is an in-memory storage.Store.
type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.objects[key] = data
	return nil
}

func (o *memObjects) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Size: int64(len(data)), ContentType: "image/jpeg"}, nil
}

func (o *memObjects) Delete(ctx context.Context, key string) error {
	delete(o.objects, key)
	return nil
}

func (o *memObjects) DeletePrefix(ctx context.Context, prefix string) error {
	maps.DeleteFunc(o.objects, func(key string, _ []byte) bool { return strings.HasPrefix(key, prefix) })
	return nil
}

func (o *memObjects) keys(prefix string) []string {
	var out []string
	for key := range o.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret: "test-secret",
			JWTAccessTTL:    15 * time.Minute,
			JWTRefreshTTL:   24 * time.Hour,
			MaxSessions:     3,
		},
		App: config.AppSettings{
			BaseDomain:  "devicegalaxy.test",
			PublicURL:   "https://devicegalaxy.test",
			DeviceLimit: 3,
			TagLimit:    2,
		},
	}
}

// testEnv wires every service against one memStore with the cooldown gate
// disabled.
type testEnv struct {
	store   *memStore
	objects *memObjects
	cfg     *config.AppConfig
	devices *DeviceService
	tags    *TagService
	shares  *ShareService
	subs    *SubdomainService
	status  *StatusService
	attrs   *AttributeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	objects := newMemObjects()
	cfg := testConfig()
	v := validation.New()
	logger := zerolog.Nop()
	gate := NewCooldownGate(store.Cooldowns(), 0, nil)

	return &testEnv{
		store:   store,
		objects: objects,
		cfg:     cfg,
		devices: NewDeviceService(store, objects, gate, nil, v, cfg, logger),
		tags:    NewTagService(store, gate, v, cfg, logger),
		shares:  NewShareService(store, nil, logger),
		subs:    NewSubdomainService(store, v, nil, logger),
		status:  NewStatusService(store, cfg),
		attrs:   NewAttributeService(store),
	}
}

func (e *testEnv) addUser(id string) models.User {
	user := models.User{
		ID:     id,
		Email:  id + "@example.com",
		Name:   id,
		Role:   models.UserRoleUser,
		Status: models.UserStatusActive,
	}
	e.store.st.users[id] = user
	return user
}

func (e *testEnv) addDevice(t *testing.T, userID string, input DeviceInput) models.Device {
	t.Helper()
	device, err := e.devices.Create(context.Background(), userID, CreateDeviceInput{DeviceInput: input})
	require.NoError(t, err)
	return device
}

func pngUpload(t *testing.T, name string) Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return Upload{Filename: name, MIME: "image/png", Data: buf.Bytes()}
}
