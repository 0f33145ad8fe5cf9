package bot_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	"github.com/zhouzirui/chat-popup/backend/internal/service/bot"
)

func TestServiceReplyMatchesCannedSelection(t *testing.T) {
	coach := persona.Seed()[0]
	svc, err := bot.NewService(context.Background(), coach)
	require.NoError(t, err)

	for _, text := range []string{"hi", "hello", "a", "what next?"} {
		got, err := svc.Reply(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, coach.ReplyFor(text), got, "text %q", text)
	}
}

func TestCannedModelUsesLastUserMessage(t *testing.T) {
	coach := persona.Seed()[0]
	m := bot.NewCannedModel(coach)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.UserMessage("hello"),
		schema.AssistantMessage("ignored", nil),
		schema.UserMessage("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "Great! Let us keep the ideas flowing.", msg.Content)
}

func TestCannedModelWithoutUserMessage(t *testing.T) {
	m := bot.NewCannedModel(persona.Seed()[0])

	_, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("setup")})
	assert.ErrorIs(t, err, bot.ErrNoUserMessage)
}

func TestCannedModelStreamsSingleChunk(t *testing.T) {
	m := bot.NewCannedModel(persona.Seed()[0])

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("abc")})
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Nice thought. Want to iterate a bit more?", first.Content)

	_, err = stream.Recv()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestCannedModelHonoursCancelledContext(t *testing.T) {
	m := bot.NewCannedModel(persona.Seed()[0])
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, []*schema.Message{schema.UserMessage("hi")})
	assert.ErrorIs(t, err, context.Canceled)
}
