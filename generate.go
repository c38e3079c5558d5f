package main

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/relay/internal/chat"
	"github.com/charmbracelet/relay/internal/function"
	"github.com/charmbracelet/relay/internal/ollama"
	"github.com/charmbracelet/relay/internal/openai"
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
	"github.com/charmbracelet/x/exp/ordered"
	xstrings "github.com/charmbracelet/x/exp/strings"
	"github.com/google/uuid"
)

const maxChoices = 128

func generate(ctx context.Context, logger *log.Logger, prompt string) error {
	api, mod, err := config.resolveModel()
	if err != nil {
		return err
	}
	key, err := api.apiKey()
	if err != nil {
		return err
	}
	client, err := newClient(api, key)
	if err != nil {
		return err
	}

	var store *convoStore
	if !config.NoCache || config.ContinueLast || config.Continue != "" {
		store, err = openStore(config)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		if err := store.resolve(&config); err != nil {
			return err
		}
	}

	var messages []proto.Message
	if config.cacheReadFromID != "" {
		messages, err = store.load(&Conversation{ID: config.cacheReadFromID})
	} else {
		messages, err = roleMessages(ctx, config)
	}
	if err != nil {
		return err
	}

	registry, err := buildRegistry(ctx, config, logger)
	if err != nil {
		return err
	}

	session := chat.New(client, registry, chat.NewConversation(messages...), sessionOptions(config, mod, logger))
	var out *chat.Output
	if prompt != "" {
		out = session.Send(ctx, prompt)
	} else {
		out = session.Generate(ctx)
	}
	defer out.Close() //nolint:errcheck

	var sb strings.Builder
	for out.Next() {
		fmt.Print(out.Current())
		sb.WriteString(out.Current())
	}
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
		fmt.Println()
	}
	if err := out.Err(); err != nil {
		return generationError(err, mod.API)
	}

	if config.Copy {
		if err := clipboard.WriteAll(sb.String()); err != nil {
			logger.Warn("could not copy to clipboard", "err", err)
		}
	}

	if store == nil || config.NoCache {
		return nil
	}
	if err := store.save(
		config.cacheWriteToID,
		config.cacheWriteToTitle,
		mod.Name,
		session.Context().Messages(),
	); err != nil {
		return err
	}
	if !config.Quiet && isErrTTY() {
		fmt.Fprintf(
			os.Stderr,
			"\nConversation saved: %s %s\n",
			stderrStyles().SHA1.Render(shortID(config.cacheWriteToID)),
			stderrStyles().Comment.Render(config.cacheWriteToTitle),
		)
	}
	return nil
}

// newClient picks the streaming transport for the API type.
func newClient(api API, key string) (stream.Client, error) {
	if api.Type == apiTypeOllama {
		cfg := ollama.DefaultConfig()
		if api.BaseURL != "" {
			cfg.BaseURL = api.BaseURL
		}
		cfg.HTTPClient = &http.Client{Timeout: config.RequestTimeout}
		client, err := ollama.New(cfg)
		if err != nil {
			return nil, relayError{err, "Invalid Ollama base URL."}
		}
		return client, nil
	}
	return openai.New(openai.Config{
		AuthToken:      key,
		BaseURL:        api.BaseURL,
		APIType:        api.Type,
		MaxRetries:     &config.MaxRetries,
		RequestTimeout: config.RequestTimeout,
	}), nil
}

func sessionOptions(cfg Config, mod Model, logger *log.Logger) chat.Options {
	opts := chat.Options{
		Model:         mod.Name,
		User:          ordered.First(cfg.User, uuid.NewString()),
		Stop:          cfg.Stop,
		InjectContext: cfg.InjectContext,
		MaxRounds:     cfg.MaxRounds,
		Logger:        logger,
		OnStateChange: func(from, to chat.State) {
			logger.Debug("state", "from", from, "to", to)
		},
		OnFunctionCall: func(status proto.FunctionCallStatus) {
			if cfg.Quiet {
				return
			}
			fmt.Fprint(os.Stderr, stderrStyles().Function.Render(status.String()))
		},
	}
	if cfg.Temperature >= 0 {
		opts.Temperature = &cfg.Temperature
	}
	if cfg.TopP >= 0 {
		opts.TopP = &cfg.TopP
	}
	if cfg.MaxTokens > 0 {
		opts.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Choices > 0 {
		choices := ordered.Clamp(cfg.Choices, 1, maxChoices)
		opts.Choices = &choices
	}
	return opts
}

// roleMessages loads the system messages of the selected role.
func roleMessages(ctx context.Context, cfg Config) ([]proto.Message, error) {
	if cfg.Role == "" {
		return nil, nil
	}
	roles, ok := cfg.Roles[cfg.Role]
	if !ok {
		return nil, relayError{
			err: newUserErrorf(
				"Available roles are %s.",
				xstrings.EnglishJoin(slices.Sorted(maps.Keys(cfg.Roles)), true),
			),
			reason: fmt.Sprintf("Role %s does not exist.", stderrStyles().InlineCode.Render(cfg.Role)),
		}
	}
	messages := make([]proto.Message, 0, len(roles))
	for _, role := range roles {
		content, err := loadMsg(ctx, role)
		if err != nil {
			return nil, relayError{err, fmt.Sprintf("Could not use role %s.", cfg.Role)}
		}
		messages = append(messages, proto.Message{
			Role:    proto.RoleSystem,
			Content: content,
		})
	}
	return messages, nil
}

// buildRegistry collects the built-in functions and the tools of the enabled
// MCP servers.
func buildRegistry(ctx context.Context, cfg Config, logger *log.Logger) (*function.Set, error) {
	specs := builtinFunctions(time.Now)
	if len(cfg.MCPServers) > 0 {
		tools, err := newMCPServers(cfg, logger).specs(ctx)
		if err != nil {
			return nil, err
		}
		specs = append(specs, tools...)
	}
	set, err := function.NewSet(specs...)
	if err != nil {
		return nil, relayError{err, "Could not register functions."}
	}
	return set, nil
}
