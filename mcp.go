package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/go-shellwords"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/relay/internal/cache"
	"github.com/charmbracelet/relay/internal/function"
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// mcpToolDef is a tool as listed by an MCP server. The input schema is kept
// as raw JSON so listings can be cached.
type mcpToolDef struct {
	Name        string
	Description string
	Schema      []byte
}

// mcpConnectFunc returns an initialized client for the given server.
type mcpConnectFunc func(ctx context.Context, name string, server MCPServerConfig) (*client.Client, error)

// mcpServers exposes the tools of the enabled MCP servers as functions.
type mcpServers struct {
	servers map[string]MCPServerConfig
	timeout time.Duration
	ttl     time.Duration
	cache   *cache.ExpiringCache[[]mcpToolDef]
	connect mcpConnectFunc
	logger  *log.Logger
}

func newMCPServers(cfg Config, logger *log.Logger) *mcpServers {
	s := &mcpServers{
		servers: map[string]MCPServerConfig{},
		timeout: cfg.MCPTimeout,
		ttl:     cfg.MCPCache,
		connect: connectStdio,
		logger:  logger,
	}
	for name, server := range cfg.MCPServers {
		if isMCPEnabled(cfg, name) {
			s.servers[name] = server
		}
	}
	if cfg.MCPCache > 0 && cfg.CachePath != "" {
		c, err := cache.NewExpiring[[]mcpToolDef](cfg.CachePath, cache.FunctionCache)
		if err != nil {
			logger.Warn("mcp tool listings will not be cached", "err", err)
		} else {
			s.cache = c
		}
	}
	return s
}

func isMCPEnabled(cfg Config, name string) bool {
	return !slices.Contains(cfg.MCPDisable, "*") &&
		!slices.Contains(cfg.MCPDisable, name)
}

// mcpCommand splits the configured command, so it may carry its own
// arguments, and appends the configured args.
func mcpCommand(server MCPServerConfig) (string, []string, error) {
	words, err := shellwords.Parse(server.Command)
	if err != nil {
		return "", nil, fmt.Errorf("parse command %q: %w", server.Command, err)
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], append(words[1:], server.Args...), nil
}

func connectStdio(ctx context.Context, name string, server MCPServerConfig) (*client.Client, error) {
	command, args, err := mcpCommand(server)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	cli, err := client.NewStdioMCPClient(
		command,
		append(os.Environ(), server.Env...),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	if err := initializeMCP(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	return cli, nil
}

func initializeMCP(ctx context.Context, cli *client.Client) error {
	if err := cli.Start(ctx); err != nil {
		return err //nolint:wrapcheck
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "relay", Version: Version}
	_, err := cli.Initialize(ctx, req)
	return err //nolint:wrapcheck
}

func (s *mcpServers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// names returns the enabled server names, sorted.
func (s *mcpServers) names() []string {
	return slices.Sorted(maps.Keys(s.servers))
}

// cacheID changes whenever the server configuration does.
func (s *mcpServers) cacheID(name string) string {
	server := s.servers[name]
	key := strings.Join(slices.Concat([]string{name, server.Command}, server.Args, server.Env), "\x00")
	return name + "-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// tools lists the tools of every enabled server concurrently.
func (s *mcpServers) tools(ctx context.Context) (map[string][]mcpToolDef, error) {
	var mu sync.Mutex
	var wg errgroup.Group
	result := map[string][]mcpToolDef{}
	for _, name := range s.names() {
		wg.Go(func() error {
			tools, err := s.toolsFor(ctx, name)
			if errors.Is(err, context.DeadlineExceeded) {
				return relayError{
					err:    fmt.Errorf("timeout while listing tools for %q - make sure the configuration is correct. If your server requires a docker container, make sure it's running", name),
					reason: "Could not list tools",
				}
			}
			if err != nil {
				return relayError{
					err:    err,
					reason: "Could not list tools",
				}
			}
			mu.Lock()
			result[name] = tools
			mu.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return result, nil
}

func (s *mcpServers) toolsFor(ctx context.Context, name string) ([]mcpToolDef, error) {
	if s.cache != nil {
		tools, err := s.cache.Get(s.cacheID(name))
		if err == nil {
			s.logger.Debug("mcp tools from cache", "server", name, "tools", len(tools))
			return tools, nil
		}
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, cache.ErrExpired) {
			s.logger.Debug("mcp tools cache miss", "server", name, "err", err)
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cli, err := s.connect(ctx, name, s.servers[name])
	if err != nil {
		return nil, err
	}
	defer cli.Close() //nolint:errcheck

	listed, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("could not list tools of %s: %w", name, err)
	}
	tools := make([]mcpToolDef, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		bts, err := json.Marshal(tool)
		if err != nil {
			return nil, fmt.Errorf("invalid tool %s of %s: %w", tool.Name, name, err)
		}
		tools = append(tools, mcpToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      []byte(gjson.GetBytes(bts, "inputSchema").Raw),
		})
	}

	if s.cache != nil {
		if err := s.cache.Put(s.cacheID(name), tools, s.ttl); err != nil {
			s.logger.Debug("could not cache mcp tools", "server", name, "err", err)
		}
	}
	return tools, nil
}

// specs returns one function per tool, named "<server>_<tool>".
func (s *mcpServers) specs(ctx context.Context) ([]function.Spec, error) {
	servers, err := s.tools(ctx)
	if err != nil {
		return nil, err
	}
	var specs []function.Spec
	for _, name := range s.names() {
		for _, tool := range servers[name] {
			specs = append(specs, &mcpFunction{servers: s, server: name, tool: tool})
		}
	}
	return specs, nil
}

// call runs a tool and joins its text content.
func (s *mcpServers) call(ctx context.Context, name, tool string, args map[string]any) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cli, err := s.connect(ctx, name, s.servers[name])
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	defer cli.Close() //nolint:errcheck

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}

type mcpFunction struct {
	servers *mcpServers
	server  string
	tool    mcpToolDef
}

var _ function.Spec = &mcpFunction{}

func (f *mcpFunction) Definition() proto.FunctionDefinition {
	params := map[string]any{}
	if err := json.Unmarshal(f.tool.Schema, &params); err != nil || len(params) == 0 {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return proto.FunctionDefinition{
		Name:        f.server + "_" + f.tool.Name,
		Description: f.tool.Description,
		Parameters:  params,
	}
}

func (f *mcpFunction) Inject(args []byte) (function.Executor, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", f.tool.Name, err)
		}
	}
	return function.ExecutorFunc(func(ctx context.Context) (string, error) {
		return f.servers.call(ctx, f.server, f.tool.Name, params)
	}), nil
}
