package checkin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/model/chat"
	"github.com/muni-health/muni/backend/internal/service/ai"
)

// Apology replaces the reply when the completion stream fails.
const Apology = "Sorry, I'm having trouble responding right now. Please try again in a moment."

// ErrEmptyMessage is returned for blank submissions.
var ErrEmptyMessage = errors.New("message text is required")

// Completer opens a streamed reply for one turn.
type Completer interface {
	StreamReply(ctx context.Context, profile chat.Profile, history []chat.Message, userText string) (ai.ChunkStream, error)
}

// Store persists sessions and transcripts.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
	SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error)
	BeginTurn(ctx context.Context, sessionID string) (string, func(), error)
}

// Result summarises how a turn ended.
type Result struct {
	TurnID string `json:"turnId"`
	Halted bool   `json:"halted"`
	Failed bool   `json:"failed"`
	Reply  string `json:"reply"`
}

// Service runs check-in turns: it records the patient's message, streams the
// assistant's reply through the triage classifier and forwards every message
// to the caller's sink as soon as it is stored.
type Service struct {
	completer Completer
	store     Store
	rules     triage.Rules
}

// NewService wires a check-in runner.
func NewService(completer Completer, store Store, rules triage.Rules) *Service {
	return &Service{completer: completer, store: store, rules: rules}
}

// Rules returns the triage rules in use.
func (s *Service) Rules() triage.Rules {
	return s.rules
}

// Send runs one turn for text. Errors are returned only when the turn could
// not start; a failing completion stream ends the turn with the apology
// message instead.
func (s *Service) Send(ctx context.Context, sessionID, text string, sink triage.Sink) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyMessage
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	turnID, release, err := s.store.BeginTurn(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	history, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	out := &persistingSink{ctx: ctx, store: s.store, next: sink}
	out.Emit(chat.Message{
		SessionID: sessionID,
		TurnID:    turnID,
		Sender:    chat.SenderUser,
		Text:      text,
	})

	turn := triage.NewTurn(s.rules, sessionID, turnID, out)
	result := Result{TurnID: turnID}

	if err := s.consume(ctx, turn, session.Profile, history, text); err != nil {
		log.Printf("[checkin] turn failed session=%s turn=%s: %v", sessionID, turnID, err)
		out.Emit(chat.Message{
			SessionID: sessionID,
			TurnID:    turnID,
			Sender:    chat.SenderBot,
			Text:      Apology,
		})
		result.Failed = true
		return result, nil
	}

	result.Halted = turn.Halted()
	result.Reply = turn.Accumulated()
	if result.Halted {
		log.Printf("[checkin] safety alert raised session=%s turn=%s", sessionID, turnID)
	} else {
		log.Printf("[checkin] completed turn session=%s turn=%s length=%d", sessionID, turnID, len(result.Reply))
	}
	return result, nil
}

func (s *Service) consume(ctx context.Context, turn *triage.Turn, profile chat.Profile, history []chat.Message, text string) error {
	stream, err := s.completer.StreamReply(ctx, profile, history, text)
	if err != nil {
		return fmt.Errorf("open reply stream: %w", err)
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			turn.Finish()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read reply stream: %w", err)
		}
		if !turn.Push(delta) {
			return nil
		}
	}
}

type persistingSink struct {
	ctx   context.Context
	store Store
	next  triage.Sink
}

func (p *persistingSink) Emit(msg chat.Message) {
	saved, err := p.store.SaveMessage(p.ctx, msg)
	if err != nil {
		log.Printf("[checkin] failed to save %s message: %v", msg.Sender, err)
		saved = msg
	}
	if p.next != nil {
		p.next.Emit(saved)
	}
}
