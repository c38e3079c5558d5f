package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/relay/internal/ollama"
	"github.com/charmbracelet/relay/internal/openai"
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestIsCompletionCmd(t *testing.T) {
	for args, is := range map[string]bool{
		"":                                     false,
		"something":                            false,
		"something something":                  false,
		"completion for my bash script how to": false,
		"completion bash how to":               false,
		"completion":                           false,
		"completion -h":                        true,
		"completion --help":                    true,
		"completion help":                      true,
		"completion bash":                      true,
		"completion fish":                      true,
		"completion zsh":                       true,
		"completion powershell":                true,
		"completion bash -h":                   true,
		"completion fish -h":                   true,
		"completion zsh -h":                    true,
		"completion powershell -h":             true,
		"completion bash --help":               true,
		"completion fish --help":               true,
		"completion zsh --help":                true,
		"completion powershell --help":         true,
		"__complete":                           true,
		"__complete blah blah blah":            true,
	} {
		t.Run(args, func(t *testing.T) {
			vargs := append([]string{"relay"}, strings.Fields(args)...)
			if b := isCompletionCmd(vargs); b != is {
				t.Errorf("%v: expected %v, got %v", vargs, is, b)
			}
		})
	}
}

func TestIsManCmd(t *testing.T) {
	for args, is := range map[string]bool{
		"":                    false,
		"something":           false,
		"something something": false,
		"man is no more":      false,
		"mans":                false,
		"man foo":             false,
		"man":                 true,
		"man -h":              true,
		"man --help":          true,
	} {
		t.Run(args, func(t *testing.T) {
			vargs := append([]string{"relay"}, strings.Fields(args)...)
			if b := isManCmd(vargs); b != is {
				t.Errorf("%v: expected %v, got %v", vargs, is, b)
			}
		})
	}
}

func TestRoleMessages(t *testing.T) {
	cfg := defaultConfig()
	cfg.Roles = map[string][]string{
		"default": {},
		"shell":   {"you are a shell expert", "you do not explain anything"},
	}

	t.Run("no role", func(t *testing.T) {
		msgs, err := roleMessages(context.Background(), cfg)
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("role", func(t *testing.T) {
		cfg := cfg
		cfg.Role = "shell"
		msgs, err := roleMessages(context.Background(), cfg)
		require.NoError(t, err)
		require.Equal(t, []proto.Message{
			{Role: proto.RoleSystem, Content: "you are a shell expert"},
			{Role: proto.RoleSystem, Content: "you do not explain anything"},
		}, msgs)
	})

	t.Run("missing role", func(t *testing.T) {
		cfg := cfg
		cfg.Role = "poet"
		_, err := roleMessages(context.Background(), cfg)
		var rerr relayError
		require.ErrorAs(t, err, &rerr)
		require.Contains(t, rerr.Error(), "default and shell")
	})
}

func TestSessionOptions(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("defaults leave sampling unset", func(t *testing.T) {
		opts := sessionOptions(defaultConfig(), Model{Name: "gpt-4o"}, logger)
		require.Equal(t, "gpt-4o", opts.Model)
		require.NotEmpty(t, opts.User)
		require.Nil(t, opts.Temperature)
		require.Nil(t, opts.TopP)
		require.Nil(t, opts.MaxTokens)
		require.Nil(t, opts.Choices)
		require.Equal(t, 10, opts.MaxRounds)
	})

	t.Run("set values", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.User = "me"
		cfg.Temperature = 0
		cfg.MaxTokens = 100
		cfg.Choices = 1000
		opts := sessionOptions(cfg, Model{Name: "gpt-4o"}, logger)
		require.Equal(t, "me", opts.User)
		require.NotNil(t, opts.Temperature)
		require.Zero(t, *opts.Temperature)
		require.Equal(t, int64(100), *opts.MaxTokens)
		require.Equal(t, int64(maxChoices), *opts.Choices)
	})
}

func TestNewClient(t *testing.T) {
	client, err := newClient(API{Name: "local", Type: apiTypeOllama}, "")
	require.NoError(t, err)
	require.IsType(t, &ollama.Client{}, client)

	client, err = newClient(API{Name: "openai", BaseURL: "https://api.openai.com/v1"}, "sk-test")
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, client)

	_, err = newClient(API{Name: "local", Type: apiTypeOllama, BaseURL: "http://[::1"}, "")
	var rerr relayError
	require.ErrorAs(t, err, &rerr)
}

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	printList(&buf, []Conversation{
		{ID: "df31ae23ab8b75b5643c2f846c570997edc71333", Title: "numbers", UpdatedAt: time.Now()},
	}, false)
	require.True(t, strings.HasPrefix(buf.String(), "df31ae2\tnumbers\t"), buf.String())
}

func sseChunk(delta string) string {
	return fmt.Sprintf(
		"data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test\",\"choices\":[{\"index\":0,\"delta\":%s}]}\n\n",
		delta,
	)
}

func TestGenerate(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bts, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, bts)
		n := len(bodies)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		if n == 1 {
			_, _ = io.WriteString(w, sseChunk(`{"role":"assistant","function_call":{"name":"current_time","arguments":""}}`))
			_, _ = io.WriteString(w, sseChunk(`{"function_call":{"arguments":"{\"timezone\":\"UTC\"}"}}`))
		} else {
			_, _ = io.WriteString(w, sseChunk(`{"role":"assistant","content":"It is"}`))
			_, _ = io.WriteString(w, sseChunk(`{"content":" noon."}`))
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	saved := config
	t.Cleanup(func() { config = saved })

	config = defaultConfig()
	require.NoError(t, parseConfig([]byte(fmt.Sprintf(`
default-model: test
apis:
  local:
    base-url: %s/v1
    api-key: sk-test
    models:
      test:
        aliases: ["t"]
`, srv.URL)), &config))
	config.CachePath = t.TempDir()
	config.MaxRetries = 0
	config.Quiet = true

	require.NoError(t, generate(context.Background(), log.New(io.Discard), "what time is it?\nin UTC"))

	mu.Lock()
	require.Len(t, bodies, 2)
	second := bodies[1]
	mu.Unlock()
	require.Equal(t, "current_time", gjson.GetBytes(bodies[0], "functions.0.name").String())
	require.Equal(t, "function", gjson.GetBytes(second, "messages.2.role").String())
	require.Equal(t, "current_time", gjson.GetBytes(second, "messages.2.name").String())

	store, err := openStore(config)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	convo, err := store.find("")
	require.NoError(t, err)
	require.Equal(t, "what time is it?", convo.Title)
	require.NotNil(t, convo.Model)
	require.Equal(t, "test", *convo.Model)

	messages, err := store.load(convo)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	require.Equal(t, proto.RoleUser, messages[0].Role)
	require.Equal(t, "current_time", messages[1].FunctionCall.Name)
	require.Equal(t, proto.RoleFunction, messages[2].Role)
	require.Equal(t, "It is noon.", messages[3].Content)

	t.Run("continue", func(t *testing.T) {
		config.ContinueLast = true
		t.Cleanup(func() { config.ContinueLast = false })
		require.NoError(t, generate(context.Background(), log.New(io.Discard), "and in Paris?"))

		mu.Lock()
		last := bodies[len(bodies)-1]
		mu.Unlock()
		require.Equal(t, "It is noon.", gjson.GetBytes(last, "messages.3.content").String())
		require.Equal(t, "and in Paris?", gjson.GetBytes(last, "messages.4.content").String())

		list, err := store.db.List()
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}
