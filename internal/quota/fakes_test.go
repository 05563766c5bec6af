package quota

import (
	"context"
	"sync"
	"time"

	"limit-tg-bot/internal/gateway"
)

// In-memory fakes for the tracker tests.

type userKey struct {
	userID  int64
	groupID int64
}

type memStore struct {
	mu     sync.Mutex
	groups map[int64]*GroupConfig
	users  map[userKey]*UserQuota
	admins map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		groups: make(map[int64]*GroupConfig),
		users:  make(map[userKey]*UserQuota),
		admins: make(map[int64]bool),
	}
}

func (s *memStore) GetGroup(groupID int64) (*GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) EnsureGroup(groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		s.groups[groupID] = &GroupConfig{GroupID: groupID, MessageLimit: 3, MuteEnabled: true, MuteTime: "5m"}
	}
	return nil
}

func (s *memStore) SetMessageLimit(groupID int64, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID].MessageLimit = limit
	return nil
}

func (s *memStore) SetWarnThreshold(groupID int64, threshold int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID].WarnThreshold = threshold
	return nil
}

func (s *memStore) SetMuteEnabled(groupID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID].MuteEnabled = enabled
	return nil
}

func (s *memStore) SetMuteTime(groupID int64, muteTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID].MuteTime = muteTime
	return nil
}

func (s *memStore) EnsureUser(userID, groupID int64, today string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey{userID, groupID}
	if _, ok := s.users[key]; !ok {
		s.users[key] = &UserQuota{UserID: userID, GroupID: groupID, LastReset: today}
	}
	return nil
}

func (s *memStore) GetUser(userID, groupID int64) (*UserQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey{userID, groupID}]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SaveCount(userID, groupID int64, count int, lastReset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userKey{userID, groupID}]
	u.MessageCount = count
	u.LastReset = lastReset
	return nil
}

func (s *memStore) SetExtendedLimit(userID, groupID int64, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey{userID, groupID}].ExtendedLimit = limit
	return nil
}

func (s *memStore) SetSpecial(userID, groupID int64, special bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey{userID, groupID}].IsSpecial = special
	return nil
}

func (s *memStore) IsSpecial(userID, groupID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey{userID, groupID}]
	return ok && u.IsSpecial, nil
}

func (s *memStore) SetExemptUntil(userID, groupID int64, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey{userID, groupID}].ExemptUntil = until
	return nil
}

func (s *memStore) ResetCount(userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userKey{userID, groupID}]; ok {
		u.MessageCount = 0
	}
	return nil
}

func (s *memStore) ResetAllCounts(groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.GroupID == groupID {
			u.MessageCount = 0
		}
	}
	return nil
}

func (s *memStore) TopUsers(groupID int64, n int) ([]UserQuota, error) {
	return nil, nil
}

func (s *memStore) IsStatsAdmin(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[userID], nil
}

func (s *memStore) AddStatsAdmin(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[userID] = true
	return nil
}

func (s *memStore) Close() error { return nil }

type sentMessage struct {
	chatID  int64
	text    string
	buttons []gateway.Button
	html    bool
}

type restrictCall struct {
	chatID int64
	userID int64
	until  time.Time
}

type fakeGateway struct {
	mu        sync.Mutex
	sent      []sentMessage
	deleted   []gateway.MessageRef
	restricts []restrictCall
	restores  []userKey
	nextMsgID int
}

func (g *fakeGateway) MemberStatus(ctx context.Context, channelID, userID int64) (string, error) {
	return gateway.StatusMember, nil
}

func (g *fakeGateway) CreateInviteLink(ctx context.Context, channelID int64, joinRequest bool) (string, error) {
	return "https://t.me/+invite", nil
}

func (g *fakeGateway) RestrictSend(ctx context.Context, chatID, userID int64, until time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restricts = append(g.restricts, restrictCall{chatID, userID, until})
	return nil
}

func (g *fakeGateway) RestoreSend(ctx context.Context, chatID, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restores = append(g.restores, userKey{userID, chatID})
	return nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, chatID int64, text string, buttons []gateway.Button) (gateway.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMsgID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return gateway.MessageRef{ChatID: chatID, MessageID: g.nextMsgID}, nil
}

func (g *fakeGateway) SendHTML(ctx context.Context, chatID int64, html string) (gateway.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMsgID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: html, html: true})
	return gateway.MessageRef{ChatID: chatID, MessageID: g.nextMsgID}, nil
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, ref gateway.MessageRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, ref)
	return nil
}

type scheduledJob struct {
	delay time.Duration
	name  string
	fn    func(ctx context.Context)
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *fakeScheduler) Once(delay time.Duration, name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{delay: delay, name: name, fn: fn})
}

func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()
	for _, j := range jobs {
		j.fn(context.Background())
	}
}
