package bot

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

// ErrNoUserMessage is returned when the model input holds no user turn.
var ErrNoUserMessage = errors.New("no user message in input")

// CannedModel is a scripted chat model: it answers the last user message with
// the persona's canned reply for that message's length. It never leaves the
// process.
type CannedModel struct {
	persona persona.Persona
}

var _ model.BaseChatModel = (*CannedModel)(nil)

// NewCannedModel returns a model answering as p.
func NewCannedModel(p persona.Persona) *CannedModel {
	return &CannedModel{persona: p}
}

// Generate returns the canned reply for the latest user message in input.
func (m *CannedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, ok := lastUserContent(input)
	if !ok {
		return nil, ErrNoUserMessage
	}
	if len(m.persona.Replies) == 0 {
		return nil, errors.Errorf("persona %q has no canned replies", m.persona.ID)
	}

	return schema.AssistantMessage(m.persona.ReplyFor(text), nil), nil
}

// Stream yields the Generate result as a single chunk.
func (m *CannedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func lastUserContent(input []*schema.Message) (string, bool) {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content, true
		}
	}
	return "", false
}
