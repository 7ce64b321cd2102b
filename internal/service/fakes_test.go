package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/set-night/appealrouter/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string][]byte{}}
}

func (s *memStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return data, nil
}

func (s *memStore) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.docs[name] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

type sentMessage struct {
	ChatID int64
	Text   string
	Media  *domain.Media
	Opts   SendOptions
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	deleted  []int
	answers  []string
	failSend map[int64]int // remaining failures per chat, -1 fails forever
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 1000, failSend: map[int64]int{}}
}

func (m *fakeMessenger) fail(chatID int64, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSend[chatID] = times
}

func (m *fakeMessenger) record(chatID int64, text string, media *domain.Media, opts SendOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.failSend[chatID]; n != 0 {
		if n > 0 {
			m.failSend[chatID] = n - 1
		}
		return 0, fmt.Errorf("%w: chat %d unavailable", domain.ErrTransport, chatID)
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, Media: media, Opts: opts})
	return m.nextID, nil
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	return m.record(chatID, text, nil, opts)
}

func (m *fakeMessenger) SendMedia(_ context.Context, chatID int64, media domain.Media, caption string, opts SendOptions) (int, error) {
	return m.record(chatID, caption, &media, opts)
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) AnswerControl(_ context.Context, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *fakeMessenger) sentTo(chatID int64) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (m *fakeMessenger) texts(chatID int64) []string {
	var out []string
	for _, s := range m.sentTo(chatID) {
		out = append(out, s.Text)
	}
	return out
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]domain.AppealStatus
	calls    int
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{statuses: map[string]domain.AppealStatus{}}
}

func (f *fakeStatus) set(appealID string, status domain.AppealStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[appealID] = status
}

// Status reports unknown for ids that were never set.
func (f *fakeStatus) Status(_ context.Context, appealID string) (domain.AppealStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.statuses[appealID]
	return s, ok
}

var errDiskFull = errors.New("disk full")

func testPolicy() AppealPolicy {
	return AppealPolicy{
		RepostAttempts:    3,
		RepostBackoff:     time.Millisecond,
		ReminderAttempts:  3,
		ReminderBackoff:   time.Millisecond,
		ReminderIntervals: []time.Duration{time.Minute, 4 * time.Minute, 8 * time.Minute},
	}
}

// gatedMessenger holds SendText calls to one chat until release is closed.
type gatedMessenger struct {
	*fakeMessenger
	gateChat int64
	entered  chan struct{}
	release  chan struct{}
}

func newGatedMessenger(inner *fakeMessenger, chatID int64) *gatedMessenger {
	return &gatedMessenger{
		fakeMessenger: inner,
		gateChat:      chatID,
		entered:       make(chan struct{}, 16),
		release:       make(chan struct{}),
	}
}

func (m *gatedMessenger) SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	if chatID == m.gateChat {
		m.entered <- struct{}{}
		<-m.release
	}
	return m.fakeMessenger.SendText(ctx, chatID, text, opts)
}
