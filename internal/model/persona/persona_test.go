package persona_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

func TestReplyForUsesLengthModulo(t *testing.T) {
	coach := persona.Seed()[0]
	require.Len(t, coach.Replies, 5)

	assert.Equal(t, "Great! Let us keep the ideas flowing.", coach.ReplyFor("hi"))
	assert.Equal(t, coach.Replies[0], coach.ReplyFor("hello"))
	assert.Equal(t, coach.Replies[1], coach.ReplyFor("x"))
	assert.Equal(t, coach.Replies[4], coach.ReplyFor("abcd"))
	assert.Equal(t, coach.Replies[0], coach.ReplyFor(""))
}

func TestTextLengthCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 2, persona.TextLength("hi"))
	assert.Equal(t, 1, persona.TextLength("é"))
	// outside the BMP: one rune, a surrogate pair in UTF-16
	assert.Equal(t, 2, persona.TextLength("😀"))
	assert.Equal(t, 3, persona.TextLength("a😀"))
}

func TestReplyForWithoutReplies(t *testing.T) {
	assert.Equal(t, "", persona.Persona{}.ReplyFor("hi"))
}

func TestMemoryStoreFindByID(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())

	got, ok := store.FindByID(persona.DefaultID)
	require.True(t, ok)
	assert.Equal(t, "Product Coach", got.Name)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestMemoryStoreCopiesInput(t *testing.T) {
	seeds := persona.Seed()
	store := persona.NewMemoryStore(seeds)
	seeds[0].Replies[0] = "mutated"

	got, ok := store.FindByID(persona.DefaultID)
	require.True(t, ok)
	assert.Equal(t, "That sounds interesting! How else can I help?", got.Replies[0])
}
