package control

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatglot/chatglot/kit"
	"github.com/chatglot/chatglot/settings"
)

// RegisterMCP registers the control tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerStatusTool(srv)
	s.registerSettingsGetTool(srv)
	s.registerSettingsSetTool(srv)
	s.registerComposeTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- status ---

func (s *Service) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chatglot_status",
		Description: "Report the running session: uptime, known message regions and how many are currently translated.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.status(ctx), nil
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) {
		return nil, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- settings_get ---

func (s *Service) registerSettingsGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chatglot_settings_get",
		Description: "Read the current translation settings: reading mode, target languages, writing shortcut.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Settings.Get(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) {
		return nil, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- settings_set ---

func (s *Service) registerSettingsSetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chatglot_settings_set",
		Description: "Update translation settings. The running watcher and orchestrator pick the change up within a second.",
		InputSchema: inputSchema(map[string]any{
			"reading_mode":        map[string]any{"type": "string", "enum": []any{"auto", "click"}, "description": "How incoming messages are presented"},
			"reading_target_lang": map[string]any{"type": "string", "description": "Language incoming messages are translated to"},
			"writing_enabled":     map[string]any{"type": "boolean", "description": "Enable the compose-box shortcut"},
			"writing_target_lang": map[string]any{"type": "string", "description": "Language outgoing text is translated to"},
			"shortcut":            map[string]any{"type": "object", "description": "Key binding, e.g. {\"ctrl\":true,\"key\":\"i\"}"},
		}, []string{"reading_mode", "reading_target_lang", "writing_target_lang"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		cfg := req.(*settings.Settings)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := s.Settings.Put(ctx, *cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var cfg settings.Settings
		if err := json.Unmarshal(req.Params.Arguments, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- compose ---

func (s *Service) registerComposeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chatglot_compose",
		Description: "Translate text to the writing target language and inject it into the chat compose box.",
		InputSchema: inputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to translate and inject"},
		}, []string{"text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		cr := req.(*ComposeRequest)
		return s.composeText(ctx, cr.Text)
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var cr ComposeRequest
		if err := json.Unmarshal(req.Params.Arguments, &cr); err != nil {
			return nil, err
		}
		return &cr, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
