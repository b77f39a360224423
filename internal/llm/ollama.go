package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.1"

type ollamaClient struct {
	client *ollama.Client
	model  string
}

// NewOllama talks to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllama(baseURL, model string) (Client, error) {
	if model == "" {
		model = defaultOllamaModel
	}

	var client *ollama.Client
	if baseURL == "" {
		var err error
		if client, err = ollama.ClientFromEnvironment(); err != nil {
			return nil, err
		}
	} else {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url: %w", err)
		}
		client = ollama.NewClient(base, http.DefaultClient)
	}

	return &ollamaClient{client: client, model: model}, nil
}

func (o *ollamaClient) Complete(ctx context.Context, system, user string) (string, error) {
	var response strings.Builder
	err := o.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  o.model,
		System: system,
		Prompt: user,
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}, func(res ollama.GenerateResponse) error {
		response.WriteString(res.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}

	return response.String(), nil
}
