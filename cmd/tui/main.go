package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	"github.com/zhouzirui/chat-popup/backend/internal/service/bot"
	"github.com/zhouzirui/chat-popup/backend/internal/service/widget"
	"github.com/zhouzirui/chat-popup/backend/internal/tui"
	"github.com/zhouzirui/chat-popup/backend/pkg/logging"
)

type options struct {
	delay     time.Duration
	personaID string
	logFile   string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "chat-popup",
		Short: "Chat with the scripted demo bot in your terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().DurationVar(&opts.delay, "delay", widget.DefaultTypingDelay, "how long the bot types before replying")
	cmd.Flags().StringVar(&opts.personaID, "persona", persona.DefaultID, "persona to chat with")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file (logs are discarded when empty)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.delay <= 0 {
		return errors.Errorf("--delay must be positive, got %s", opts.delay)
	}

	var out io.Writer = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		defer f.Close()
		out = f
	}
	if err := logging.Setup(out, opts.logLevel, "json"); err != nil {
		return err
	}

	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(opts.personaID)
	if !ok {
		return errors.Errorf("unknown persona %q", opts.personaID)
	}

	replier, err := bot.NewService(ctx, p)
	if err != nil {
		return err
	}

	w := widget.New(widget.Options{
		Persona:     p,
		TypingDelay: opts.delay,
		Replier:     replier,
	})
	defer w.Close()

	model := tui.New(w)
	defer model.Close()

	log.Info().Str("persona", p.ID).Dur("delay", opts.delay).Msg("terminal chat started")
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
