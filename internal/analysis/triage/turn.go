package triage

import (
	"strings"
	"time"

	"github.com/muni-health/muni/backend/internal/model/chat"
)

// Sink receives bot messages in emission order.
type Sink interface {
	Emit(msg chat.Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg chat.Message)

// Emit calls f(msg).
func (f SinkFunc) Emit(msg chat.Message) { f(msg) }

// Turn reassembles one streamed reply into sentences and emits typed bot
// messages for them. A Turn is used by a single goroutine and discarded when
// the stream ends.
type Turn struct {
	rules     Rules
	sessionID string
	turnID    string
	sink      Sink
	now       func() time.Time

	sentenceBuffer strings.Builder
	accumulated    strings.Builder
	seen           map[string]struct{}
	alertTriggered bool
	finished       bool
}

// NewTurn creates the state for one reply.
func NewTurn(rules Rules, sessionID, turnID string, sink Sink) *Turn {
	return &Turn{
		rules:     rules,
		sessionID: sessionID,
		turnID:    turnID,
		sink:      sink,
		now:       func() time.Time { return time.Now().UTC() },
		seen:      make(map[string]struct{}),
	}
}

// Push feeds one chunk of reply text. It returns false once the turn has
// halted on an alert; callers must stop reading the stream at that point.
func (t *Turn) Push(delta string) bool {
	if t.alertTriggered || t.finished {
		return !t.alertTriggered
	}

	t.sentenceBuffer.WriteString(delta)
	if !endsSentence(t.sentenceBuffer.String()) {
		return true
	}

	sentence := t.sentenceBuffer.String()
	t.sentenceBuffer.Reset()
	t.accumulated.WriteString(sentence)

	if finding, ok := t.rules.DetectAlert(sentence); ok {
		t.alertTriggered = true
		notice, detail := t.rules.AlertTexts(finding)
		t.emit(notice, chat.TypeAlert)
		t.emit(detail, chat.TypeAlert)
		return false
	}

	if _, dup := t.seen[sentence]; dup {
		return true
	}
	t.seen[sentence] = struct{}{}
	t.emit(sentence, t.rules.Classify(sentence))
	return true
}

// Finish closes a turn whose stream completed. Unless an alert fired, the
// trailing fragment is folded into the aggregate reply, which is emitted
// untyped.
func (t *Turn) Finish() {
	if t.finished || t.alertTriggered {
		return
	}
	t.finished = true

	t.accumulated.WriteString(t.sentenceBuffer.String())
	t.sentenceBuffer.Reset()
	t.emit(t.accumulated.String(), chat.TypeNone)
}

// Halted reports whether an alert stopped the turn.
func (t *Turn) Halted() bool {
	return t.alertTriggered
}

// Accumulated returns every sentence completed so far, plus the trailing
// fragment once Finish has run.
func (t *Turn) Accumulated() string {
	return t.accumulated.String()
}

// Pending returns text received since the last sentence boundary.
func (t *Turn) Pending() string {
	return t.sentenceBuffer.String()
}

func (t *Turn) emit(text string, kind chat.MessageType) {
	if t.sink == nil {
		return
	}
	t.sink.Emit(chat.Message{
		SessionID: t.sessionID,
		TurnID:    t.turnID,
		Sender:    chat.SenderBot,
		Type:      kind,
		Text:      text,
		CreatedAt: t.now(),
	})
}

func endsSentence(buffer string) bool {
	if buffer == "" {
		return false
	}
	switch buffer[len(buffer)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
