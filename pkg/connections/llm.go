package connections

import (
	"context"
	"fmt"

	"github.com/boristopalov/apiary/pkg/providers"
)

// ActionGenerateText is the action every LLM-backed connection exposes.
const ActionGenerateText = "generate-text"

// LLMConnection adapts a providers.Provider client into a registry
// connection exposing the generate-text action.
type LLMConnection struct {
	name     string
	model    string
	provider providers.Provider
}

func NewLLMConnection(name string, model string, provider providers.Provider) *LLMConnection {
	return &LLMConnection{
		name:     name,
		model:    model,
		provider: provider,
	}
}

func (c *LLMConnection) Name() string {
	return c.name
}

func (c *LLMConnection) IsLLMProvider() bool {
	return true
}

func (c *LLMConnection) Perform(ctx context.Context, action string, params map[string]any) (any, error) {
	if action != ActionGenerateText {
		return nil, fmt.Errorf("%w: %s on connection %s", ErrActionNotFound, action, c.name)
	}

	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return nil, &ExecutionError{
			Connection: c.name,
			Action:     action,
			Err:        fmt.Errorf("empty prompt"),
		}
	}

	text, err := c.provider.Complete(ctx, c.model, prompt)
	if err != nil {
		return nil, &ExecutionError{
			Connection: c.name,
			Action:     action,
			Err:        err,
		}
	}
	return text, nil
}

func (c *LLMConnection) Close() error {
	return nil
}
