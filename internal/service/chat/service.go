package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muni-health/muni/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInFlight    = errors.New("a reply is still streaming for this session")
)

// Service encapsulates session and transcript state.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	inFlight map[string]string
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		inFlight: make(map[string]string),
	}
}

// CreateSession provisions an anonymous session and seeds its transcript
// with the greeting.
func (s *Service) CreateSession(_ context.Context, profile chat.Profile) (chat.Session, error) {
	profile.Condition = strings.TrimSpace(profile.Condition)

	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: now,
	}

	greeting := chat.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Sender:    chat.SenderBot,
		Text:      chat.Greeting,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = append(make([]chat.Message, 0, 16), greeting)
	s.mu.Unlock()

	return session, nil
}

// SaveMessage appends a message to the session transcript and returns it
// with its assigned ID.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	if message.SessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return message, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// BeginTurn reserves the session for one reply. The returned release func
// must be called when the turn ends; until then further calls fail with
// ErrTurnInFlight.
func (s *Service) BeginTurn(_ context.Context, sessionID string) (string, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return "", nil, ErrSessionNotFound
	}
	if _, busy := s.inFlight[sessionID]; busy {
		return "", nil, ErrTurnInFlight
	}

	turnID := uuid.NewString()
	s.inFlight[sessionID] = turnID

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			if s.inFlight[sessionID] == turnID {
				delete(s.inFlight, sessionID)
			}
			s.mu.Unlock()
		})
	}
	return turnID, release, nil
}

// TurnInFlight reports the ID of the turn currently streaming, if any.
func (s *Service) TurnInFlight(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turnID, ok := s.inFlight[sessionID]
	return turnID, ok
}
