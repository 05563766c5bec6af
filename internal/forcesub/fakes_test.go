package forcesub

import (
	"context"
	"errors"
	"sync"
	"time"

	"limit-tg-bot/internal/gateway"
)

// In-memory fakes for the verifier tests.

type chanKey struct {
	groupID   int64
	channelID int64
}

type pairKey struct {
	userID  int64
	groupID int64
}

type pendingKey struct {
	userID    int64
	groupID   int64
	channelID int64
}

type memForceStore struct {
	mu       sync.Mutex
	enabled  map[int64]bool
	channels map[chanKey]Channel
	verified map[pairKey]time.Time
	pending  map[pendingKey]time.Time
	muted    map[pairKey]time.Time
}

func newMemForceStore() *memForceStore {
	return &memForceStore{
		enabled:  make(map[int64]bool),
		channels: make(map[chanKey]Channel),
		verified: make(map[pairKey]time.Time),
		pending:  make(map[pendingKey]time.Time),
		muted:    make(map[pairKey]time.Time),
	}
}

func (s *memForceStore) IsEnabled(groupID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[groupID], nil
}

func (s *memForceStore) SetEnabled(groupID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[groupID] = enabled
	return nil
}

func (s *memForceStore) AddChannel(groupID, channelID int64, channelType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[chanKey{groupID, channelID}] = Channel{
		GroupID: groupID, ChannelID: channelID, Type: channelType, Active: true,
	}
	return nil
}

func (s *memForceStore) RemoveChannel(groupID, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, chanKey{groupID, channelID})
	return nil
}

func (s *memForceStore) ActiveChannels(groupID int64) ([]Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Channel
	for _, ch := range s.channels {
		if ch.GroupID == groupID && ch.Active {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *memForceStore) RequestGroupsForChannel(channelID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, ch := range s.channels {
		if ch.ChannelID == channelID && ch.Active && ch.Type == TypeRequest {
			out = append(out, ch.GroupID)
		}
	}
	return out, nil
}

func (s *memForceStore) IsVerified(userID, groupID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.verified[pairKey{userID, groupID}]
	return ok, nil
}

func (s *memForceStore) MarkVerified(userID, groupID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[pairKey{userID, groupID}] = at
	return nil
}

func (s *memForceStore) ClearGroupCache(groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.verified {
		if k.groupID == groupID {
			delete(s.verified, k)
		}
	}
	for k := range s.pending {
		if k.groupID == groupID {
			delete(s.pending, k)
		}
	}
	return nil
}

func (s *memForceStore) HasPending(userID, groupID, channelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[pendingKey{userID, groupID, channelID}]
	return ok, nil
}

func (s *memForceStore) AddPending(userID, groupID, channelID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[pendingKey{userID, groupID, channelID}] = at
	return nil
}

func (s *memForceStore) DeletePendingForUser(userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.pending {
		if k.userID == userID && k.groupID == groupID {
			delete(s.pending, k)
		}
	}
	return nil
}

func (s *memForceStore) DeletePendingForChannel(userID, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.pending {
		if k.userID == userID && k.channelID == channelID {
			delete(s.pending, k)
		}
	}
	return nil
}

func (s *memForceStore) AddMuted(userID, groupID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted[pairKey{userID, groupID}] = at
	return nil
}

func (s *memForceStore) DeleteMuted(userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.muted, pairKey{userID, groupID})
	return nil
}

func (s *memForceStore) ListMuted(groupID int64) ([]MutedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MutedUser
	for k, at := range s.muted {
		if k.groupID == groupID {
			out = append(out, MutedUser{UserID: k.userID, GroupID: k.groupID, MutedAt: at})
		}
	}
	return out, nil
}

func (s *memForceStore) Close() error { return nil }

type sentMessage struct {
	chatID  int64
	text    string
	buttons []gateway.Button
}

type fakeGateway struct {
	mu sync.Mutex
	// statuses maps channel id to the member status returned for any user.
	// Missing entries answer with an error (API failure).
	statuses     map[int64]string
	statusCalls  int
	sent         []sentMessage
	deleted      []gateway.MessageRef
	restricts    []pairKey
	restores     []pairKey
	inviteLinks  []int64
	joinRequests []bool
	nextMsgID    int
}

func (g *fakeGateway) MemberStatus(ctx context.Context, channelID, userID int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	status, ok := g.statuses[channelID]
	if !ok {
		return "", errors.New("member status unavailable")
	}
	return status, nil
}

func (g *fakeGateway) CreateInviteLink(ctx context.Context, channelID int64, joinRequest bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inviteLinks = append(g.inviteLinks, channelID)
	g.joinRequests = append(g.joinRequests, joinRequest)
	return "https://t.me/+invite", nil
}

func (g *fakeGateway) RestrictSend(ctx context.Context, chatID, userID int64, until time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restricts = append(g.restricts, pairKey{userID, chatID})
	return nil
}

func (g *fakeGateway) RestoreSend(ctx context.Context, chatID, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restores = append(g.restores, pairKey{userID, chatID})
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
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: html})
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

func (s *fakeScheduler) fire(name string) int {
	s.mu.Lock()
	var fired []scheduledJob
	var rest []scheduledJob
	for _, j := range s.jobs {
		if j.name == name {
			fired = append(fired, j)
		} else {
			rest = append(rest, j)
		}
	}
	s.jobs = rest
	s.mu.Unlock()
	for _, j := range fired {
		j.fn(context.Background())
	}
	return len(fired)
}

type fakeBypass struct {
	special map[pairKey]bool
}

func (b *fakeBypass) IsSpecial(userID, groupID int64) (bool, error) {
	return b.special[pairKey{userID, groupID}], nil
}
