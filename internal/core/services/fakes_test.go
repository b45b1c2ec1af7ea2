package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"ghostrecon/internal/core/domain"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*domain.User
	err  error
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{byID: map[string]*domain.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) FindByFingerprint(_ context.Context, fp string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.DeviceFingerprint == fp })
}

func (m *memUsers) FindByIdentifier(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool {
		return (u.Email != "" && u.Email == id) || (u.Phone != "" && u.Phone == id) ||
			(u.DeviceFingerprint != "" && u.DeviceFingerprint == id)
	})
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := m.find(func(u *domain.User) bool { return u.Email == email })
	return err == nil, nil
}

func (m *memUsers) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	_, err := m.find(func(u *domain.User) bool { return u.Phone == phone })
	return err == nil, nil
}

func (m *memUsers) SearchByAlias(_ context.Context, q, exclude string, limit int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.byID {
		if u.ID != exclude && strings.Contains(strings.ToLower(u.Alias), strings.ToLower(q)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) mutate(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	return m.mutate(id, func(u *domain.User) { u.IsOnline = online; u.LastSeen = &at })
}

func (m *memUsers) UpdateSecuritySettings(_ context.Context, id string, s domain.SecuritySettings) error {
	return m.mutate(id, func(u *domain.User) { u.Settings = s })
}

func (m *memUsers) UpdateEncryptionKeyHash(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *domain.User) { u.EncryptionKeyHash = hash })
}

func (m *memUsers) UpdatePublicKey(_ context.Context, id, key string) error {
	return m.mutate(id, func(u *domain.User) { u.PublicKey = key })
}

func (m *memUsers) UpdatePushToken(_ context.Context, id, token string) error {
	return m.mutate(id, func(u *domain.User) { u.PushToken = token })
}

type memContacts struct {
	mu   sync.Mutex
	list []domain.Contact
}

func (m *memContacts) CreateContact(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, *c)
	return nil
}

func (m *memContacts) ContactExists(_ context.Context, userID, contactID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.list {
		if c.UserID == userID && c.ContactID == contactID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memContacts) ListContacts(_ context.Context, userID string) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.list {
		if c.UserID == userID {
			c.Info = &domain.ContactInfo{Alias: c.ContactAlias, TrustLevel: c.TrustLevel}
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memContacts) UpdateTrust(_ context.Context, id, userID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id && m.list[i].UserID == userID {
			m.list[i].TrustLevel = level
			return nil
		}
	}
	return domain.ErrContactNotFound
}

func (m *memContacts) DeleteContact(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id && m.list[i].UserID == userID {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return domain.ErrContactNotFound
}

func (m *memContacts) DeleteContactsByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.list[:0]
	var n int64
	for _, c := range m.list {
		if c.UserID == userID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.list = kept
	return n, nil
}

func (m *memContacts) CountContacts(_ context.Context, userID string) (int, error) {
	list, _ := m.ListContacts(context.Background(), userID)
	return len(list), nil
}

type memConvs struct {
	mu         sync.Mutex
	byID       map[string]*domain.Conversation
	lastUpdate string
}

func newMemConvs(convs ...*domain.Conversation) *memConvs {
	m := &memConvs{byID: map[string]*domain.Conversation{}}
	for _, c := range convs {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memConvs) CreateConversation(_ context.Context, c *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memConvs) GetConversationByID(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConvs) FindDirect(_ context.Context, a, b string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.IsGroup || len(c.Participants) != 2 {
			continue
		}
		p := c.Participants
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (m *memConvs) ListForUser(_ context.Context, userID string, limit int) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, c := range m.byID {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, *c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memConvs) ConversationMembers(ctx context.Context, id string) ([]string, error) {
	c, err := m.GetConversationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Participants, nil
}

func (m *memConvs) IsParticipant(ctx context.Context, id, userID string) (bool, error) {
	c, err := m.GetConversationByID(ctx, id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, p := range c.Participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memConvs) UpdateLastMessage(_ context.Context, id, preview string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.LastMessage = &preview
	c.LastMessageAt = at
	m.lastUpdate = preview
	return nil
}

func (m *memConvs) IncrementKeyRotation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.KeyRotationCount++
	return nil
}

func (m *memConvs) DeleteCreatedBy(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.byID {
		if c.CreatedBy == userID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memConvs) CountForUser(ctx context.Context, userID string) (int, error) {
	list, _ := m.ListForUser(ctx, userID, 1<<30)
	return len(list), nil
}

type memMessages struct {
	mu        sync.Mutex
	list      []domain.Message
	createErr error
	expired   []string
	read      []string
}

func (m *memMessages) CreateMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.list = append(m.list, *msg)
	return nil
}

func (m *memMessages) ListVisible(_ context.Context, convID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.list {
		if msg.ConversationID == convID && !msg.Recalled {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) DeleteExpired(_ context.Context, convID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = append(m.expired, convID)
	kept := m.list[:0]
	var n int64
	for _, msg := range m.list {
		if (convID == "" || msg.ConversationID == convID) && msg.ExpiresAt != nil && msg.ExpiresAt.Before(now) {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.list = kept
	return n, nil
}

func (m *memMessages) MarkRead(_ context.Context, convID, readerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, convID+"/"+readerID)
	for i := range m.list {
		if m.list[i].ConversationID == convID && m.list[i].SenderID != readerID {
			m.list[i].Read = true
		}
	}
	return nil
}

func (m *memMessages) Recall(_ context.Context, id, senderID string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id && m.list[i].SenderID == senderID {
			m.list[i].Recalled = true
			m.list[i].Content = domain.RecalledContent
			cp := m.list[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *memMessages) CountUnread(_ context.Context, convID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.list {
		if msg.ConversationID == convID && msg.SenderID != userID && !msg.Read {
			n++
		}
	}
	return n, nil
}

func (m *memMessages) DeleteBySender(_ context.Context, senderID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.list[:0]
	var n int64
	for _, msg := range m.list {
		if msg.SenderID == senderID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.list = kept
	return n, nil
}

type memCalls struct {
	mu   sync.Mutex
	byID map[string]*domain.Call
}

func newMemCalls() *memCalls { return &memCalls{byID: map[string]*domain.Call{}} }

func (m *memCalls) CreateCall(_ context.Context, c *domain.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCalls) GetCallByID(_ context.Context, id string) (*domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrCallNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCalls) ListForUser(_ context.Context, userID string, limit int) ([]domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Call
	for _, c := range m.byID {
		if c.CallerID == userID || c.ReceiverID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCalls) UpdateStatus(_ context.Context, id string, status domain.CallStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrCallNotFound
	}
	c.Status = status
	return nil
}

func (m *memCalls) EndCall(_ context.Context, id string, endedAt time.Time, d int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrCallNotFound
	}
	c.Status = domain.CallEnded
	c.EndedAt = &endedAt
	c.DurationSeconds = &d
	return nil
}

func (m *memCalls) DeleteForUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.byID {
		if c.CallerID == userID || c.ReceiverID == userID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

type memKeys struct {
	mu   sync.Mutex
	keys map[string]domain.GroupKey
	err  error
}

func newMemKeys() *memKeys { return &memKeys{keys: map[string]domain.GroupKey{}} }

func (m *memKeys) StoreKeys(_ context.Context, keys []domain.GroupKey, rotate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		id := k.ConversationID + "/" + k.UserID
		if rotate {
			k.RotationCount = m.keys[id].RotationCount + 1
		}
		m.keys[id] = k
	}
	return nil
}

func (m *memKeys) GetKey(_ context.Context, convID, userID string) (*domain.GroupKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[convID+"/"+userID]
	if !ok {
		return nil, domain.ErrGroupKeyNotFound
	}
	return &k, nil
}

// passTx runs fn inline and counts invocations.
type passTx struct{ calls int }

func (t *passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type sent struct {
	to      string
	conv    string
	exclude string
	event   domain.Event
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) SendToUser(_ context.Context, userID string, e domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: userID, event: e})
}

func (n *recordingNotifier) BroadcastToConversation(_ context.Context, convID string, e domain.Event, exclude string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{conv: convID, exclude: exclude, event: e})
}

func (n *recordingNotifier) all() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

type staticPresence struct {
	entries map[string]domain.Presence
	err     error
}

func (p staticPresence) Presence(_ context.Context, ids []string) (map[string]domain.Presence, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := map[string]domain.Presence{}
	for _, id := range ids {
		if e, ok := p.entries[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}
