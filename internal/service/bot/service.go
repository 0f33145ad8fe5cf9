package bot

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

// Service runs the reply chain for one persona: the latest user text is
// wrapped into a user turn and handed to the chat model.
type Service struct {
	persona persona.Persona
	chain   compose.Runnable[string, *schema.Message]
}

// NewService compiles the reply chain around the scripted model for p.
func NewService(ctx context.Context, p persona.Persona) (*Service, error) {
	return NewServiceWithModel(ctx, p, NewCannedModel(p))
}

// NewServiceWithModel compiles the reply chain around an arbitrary chat model.
func NewServiceWithModel(ctx context.Context, p persona.Persona, chatModel model.BaseChatModel) (*Service, error) {
	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(toUserTurn))
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile reply chain")
	}

	return &Service{persona: p, chain: runnable}, nil
}

// Reply returns the bot answer to latestUserText.
func (s *Service) Reply(ctx context.Context, latestUserText string) (string, error) {
	response, err := s.chain.Invoke(ctx, latestUserText)
	if err != nil {
		return "", errors.Wrap(err, "failed to run reply chain")
	}

	log.Debug().Str("component", "bot").Str("persona", s.persona.ID).Int("input_length", persona.TextLength(latestUserText)).Msg("generated reply")
	return response.Content, nil
}

// Persona returns the persona the service answers as.
func (s *Service) Persona() persona.Persona {
	return s.persona
}

func toUserTurn(_ context.Context, text string) ([]*schema.Message, error) {
	return []*schema.Message{schema.UserMessage(text)}, nil
}
