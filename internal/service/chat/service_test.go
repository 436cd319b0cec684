package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/muni-health/muni/backend/internal/model/chat"
	chat "github.com/muni-health/muni/backend/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, model.Profile{Condition: " Crohn's disease "})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.Profile.Condition != "Crohn's disease" {
		t.Fatalf("unexpected condition: %q", got.Profile.Condition)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, model.Profile{})
	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 1 {
		t.Fatalf("expected greeting only, got %d messages", len(transcript))
	}
	if transcript[0].Text != model.Greeting || transcript[0].Sender != model.SenderBot {
		t.Fatalf("unexpected greeting: %+v", transcript[0])
	}
}

func TestSaveMessageAppendsInOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Profile{})

	for _, text := range []string{"first", "second"} {
		saved, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Sender: model.SenderUser, Text: text})
		if err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		if saved.ID == "" || saved.CreatedAt.IsZero() {
			t.Fatalf("expected ID and timestamp, got %+v", saved)
		}
	}

	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	if len(transcript) != 3 || transcript[1].Text != "first" || transcript[2].Text != "second" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestSaveMessageUnknownSession(t *testing.T) {
	svc := chat.NewService()
	_, err := svc.SaveMessage(context.Background(), model.Message{SessionID: "missing"})
	if !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestBeginTurnRejectsOverlap(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Profile{})

	turnID, release, err := svc.BeginTurn(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginTurn err: %v", err)
	}
	if current, ok := svc.TurnInFlight(session.ID); !ok || current != turnID {
		t.Fatalf("expected turn %s in flight, got %s", turnID, current)
	}

	if _, _, err := svc.BeginTurn(ctx, session.ID); !errors.Is(err, chat.ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}

	release()
	release()

	next, release2, err := svc.BeginTurn(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginTurn after release err: %v", err)
	}
	defer release2()
	if next == turnID {
		t.Fatal("expected a fresh turn ID")
	}
}

func TestBeginTurnUnknownSession(t *testing.T) {
	svc := chat.NewService()
	if _, _, err := svc.BeginTurn(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
