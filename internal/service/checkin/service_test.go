package checkin

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/model/chat"
	"github.com/muni-health/muni/backend/internal/service/ai"
	chatservice "github.com/muni-health/muni/backend/internal/service/chat"
)

type fakeStream struct {
	deltas []string
	failAt int
	reads  int
	closed bool
}

func (f *fakeStream) Recv() (string, error) {
	if f.failAt > 0 && f.reads == f.failAt {
		return "", errors.New("connection reset")
	}
	if f.reads >= len(f.deltas) {
		return "", io.EOF
	}
	d := f.deltas[f.reads]
	f.reads++
	return d, nil
}

func (f *fakeStream) Close() { f.closed = true }

type fakeCompleter struct {
	stream  *fakeStream
	err     error
	history []chat.Message
	text    string
	profile chat.Profile
}

func (f *fakeCompleter) StreamReply(_ context.Context, profile chat.Profile, history []chat.Message, text string) (ai.ChunkStream, error) {
	f.profile = profile
	f.history = history
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type collector struct {
	messages []chat.Message
}

func (c *collector) Emit(msg chat.Message) { c.messages = append(c.messages, msg) }

func setup(t *testing.T, completer Completer) (*Service, *chatservice.Service, chat.Session) {
	t.Helper()
	store := chatservice.NewService()
	session, err := store.CreateSession(context.Background(), chat.Profile{Condition: "diabetes"})
	require.NoError(t, err)
	return NewService(completer, store, triage.DefaultRules()), store, session
}

func TestSendEmitsSentencesThenAggregate(t *testing.T) {
	stream := &fakeStream{deltas: []string{"Take ", "water.", " Rest.", " Bye"}}
	completer := &fakeCompleter{stream: stream}
	svc, store, session := setup(t, completer)
	sink := &collector{}

	result, err := svc.Send(context.Background(), session.ID, "I feel weak", sink)
	require.NoError(t, err)

	require.Len(t, sink.messages, 4)
	assert.Equal(t, chat.SenderUser, sink.messages[0].Sender)
	assert.Equal(t, "I feel weak", sink.messages[0].Text)
	assert.Equal(t, "Take water.", sink.messages[1].Text)
	assert.Equal(t, chat.TypeAction, sink.messages[1].Type)
	assert.Equal(t, " Rest.", sink.messages[2].Text)
	assert.Equal(t, "Take water. Rest. Bye", sink.messages[3].Text)
	assert.Equal(t, chat.TypeNone, sink.messages[3].Type)
	for _, m := range sink.messages {
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, result.TurnID, m.TurnID)
	}

	assert.False(t, result.Halted)
	assert.False(t, result.Failed)
	assert.Equal(t, "Take water. Rest. Bye", result.Reply)
	assert.True(t, stream.closed)

	// The history sent upstream excludes the new user message.
	require.Len(t, completer.history, 1)
	assert.Equal(t, chat.Greeting, completer.history[0].Text)
	assert.Equal(t, "diabetes", completer.profile.Condition)

	transcript, err := store.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 5)

	_, busy := store.TurnInFlight(session.ID)
	assert.False(t, busy)
}

func TestSendStopsOnAlert(t *testing.T) {
	stream := &fakeStream{deltas: []string{"Your pressure is dangerously low now.", " Drink water.", " Rest."}}
	svc, _, session := setup(t, &fakeCompleter{stream: stream})
	sink := &collector{}

	result, err := svc.Send(context.Background(), session.ID, "dizzy", sink)
	require.NoError(t, err)

	assert.True(t, result.Halted)
	assert.Equal(t, 1, stream.reads)
	require.Len(t, sink.messages, 3)
	assert.Equal(t, chat.TypeAlert, sink.messages[1].Type)
	assert.Equal(t, triage.DefaultAlertNotice, sink.messages[1].Text)
	assert.Equal(t, chat.TypeAlert, sink.messages[2].Type)
	assert.Equal(t, triage.DefaultAlertDetail, sink.messages[2].Text)
}

func TestSendOpenFailureEmitsApology(t *testing.T) {
	svc, _, session := setup(t, &fakeCompleter{err: errors.New("dial tcp: refused")})
	sink := &collector{}

	result, err := svc.Send(context.Background(), session.ID, "hello", sink)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, sink.messages, 2)
	assert.Equal(t, Apology, sink.messages[1].Text)
	assert.Equal(t, chat.SenderBot, sink.messages[1].Sender)
}

func TestSendMidStreamFailureKeepsEmittedSentences(t *testing.T) {
	stream := &fakeStream{deltas: []string{"Eat something.", " More"}, failAt: 1}
	svc, _, session := setup(t, &fakeCompleter{stream: stream})
	sink := &collector{}

	result, err := svc.Send(context.Background(), session.ID, "hungry", sink)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, sink.messages, 3)
	assert.Equal(t, "Eat something.", sink.messages[1].Text)
	assert.Equal(t, Apology, sink.messages[2].Text)
	assert.True(t, stream.closed)
}

func TestSendRejectsBlankText(t *testing.T) {
	svc, _, session := setup(t, &fakeCompleter{stream: &fakeStream{}})

	_, err := svc.Send(context.Background(), session.ID, "   ", &collector{})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendUnknownSession(t *testing.T) {
	svc, _, _ := setup(t, &fakeCompleter{stream: &fakeStream{}})

	_, err := svc.Send(context.Background(), "missing", "hi", &collector{})
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestSendRejectsOverlappingTurn(t *testing.T) {
	svc, store, session := setup(t, &fakeCompleter{stream: &fakeStream{}})

	_, release, err := store.BeginTurn(context.Background(), session.ID)
	require.NoError(t, err)
	defer release()

	_, err = svc.Send(context.Background(), session.ID, "hi", &collector{})
	assert.ErrorIs(t, err, chatservice.ErrTurnInFlight)
}

func TestSendAllowsNilSink(t *testing.T) {
	svc, store, session := setup(t, &fakeCompleter{stream: &fakeStream{deltas: []string{"Rest."}}})

	_, err := svc.Send(context.Background(), session.ID, "tired", nil)
	require.NoError(t, err)

	transcript, _ := store.LoadTranscript(context.Background(), session.ID)
	assert.Len(t, transcript, 4)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(ErrEmptyMessage))
	assert.Equal(t, 404, HTTPStatus(chatservice.ErrSessionNotFound))
	assert.Equal(t, 409, HTTPStatus(chatservice.ErrTurnInFlight))
	assert.Equal(t, 500, HTTPStatus(errors.New("boom")))
}
