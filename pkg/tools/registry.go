package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
)

// Tool is one action the reasoning engine may request during a call. Invoke
// validates its input before any side effect runs; a validation error is
// returned to the engine and nothing is executed. Side-effect failures are
// logged inside the tool and never surface as an error.
type Tool interface {
	Definition() agent.ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the tools exposed to the engine and dispatches tool calls.
type Registry struct {
	logger *logrus.Logger
	tools  map[string]Tool
	order  []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		logger: logger,
		tools:  make(map[string]Tool),
	}
}

// Register adds a tool. Registering the same name twice replaces the
// earlier tool.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.logger.WithField("tool", name).Info("Registered tool")
}

// Definitions returns the tool schemas in registration order, for the
// engine session handshake.
func (r *Registry) Definitions() []agent.ToolDefinition {
	defs := make([]agent.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch runs one tool call. The returned string is the natural-language
// acknowledgment for the engine to speak; a non-nil error means the request
// was rejected before any side effect ran.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, exists := r.tools[name]
	if !exists {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Invoke(ctx, args)
}

func requireString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("malformed tool arguments: %w", err)
	}
	return nil
}
