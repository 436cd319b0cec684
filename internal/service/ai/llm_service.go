package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/muni-health/muni/backend/internal/config"
	"github.com/muni-health/muni/backend/internal/model/chat"
)

const defaultHistoryLimit = 10

// ChunkStream yields the text deltas of one streamed reply. Recv returns
// io.EOF once the reply is complete.
type ChunkStream interface {
	Recv() (string, error)
	Close()
}

// Service wraps the chat model used for check-in replies.
type Service struct {
	prompts      *CarePromptManager
	historyLimit int
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chat model from configuration and compiles the reply chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit)
}

// NewServiceWithModel compiles the reply chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, historyLimit int) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &Service{
		prompts:      NewCarePromptManager(),
		historyLimit: historyLimit,
		chain:        runnable,
	}, nil
}

// StreamReply starts streaming the assistant's reply to userText.
func (s *Service) StreamReply(ctx context.Context, profile chat.Profile, history []chat.Message, userText string) (ChunkStream, error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(profile, history, userText))
	if err != nil {
		return nil, fmt.Errorf("failed to stream reply chain output: %w", err)
	}
	return NewChunkReader(stream), nil
}

func (s *Service) buildChainInput(profile chat.Profile, history []chat.Message, userText string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(profile),
		"history": buildHistoryMessages(history, s.historyLimit),
		"query":   userText,
	}
}

// buildHistoryMessages keeps the user's messages and the assistant's untyped
// messages; per-sentence messages repeat the aggregate and are skipped.
func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Sender == chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case msg.IsBot() && msg.Type == chat.TypeNone:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}

	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	if len(history) == 0 {
		return nil
	}
	return history
}

// ChunkReader adapts an eino message stream to ChunkStream.
type ChunkReader struct {
	stream *schema.StreamReader[*schema.Message]
}

// NewChunkReader wraps stream.
func NewChunkReader(stream *schema.StreamReader[*schema.Message]) *ChunkReader {
	return &ChunkReader{stream: stream}
}

// Recv returns the next delta. A chunk without content yields "".
func (r *ChunkReader) Recv() (string, error) {
	chunk, err := r.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if chunk == nil {
		return "", nil
	}
	return chunk.Content, nil
}

// Close releases the underlying stream.
func (r *ChunkReader) Close() {
	r.stream.Close()
}
