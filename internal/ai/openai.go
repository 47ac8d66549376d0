// Package ai wraps the hosted chat-completion API used to derive project
// artifacts from a requirements document.
package ai

import (
	"context"
	"errors"

	"github.com/reqforge/apiserver/config"
	"github.com/reqforge/apiserver/types"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("generation api key is not configured")

const generationTemperature = 0.7

// Generator produces one artifact from a requirements document.
type Generator interface {
	Generate(ctx context.Context, artifact types.Artifact, requirementDoc string) (string, error)
}

// OpenAIGenerator calls the OpenAI chat-completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return &OpenAIGenerator{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, artifact types.Artifact, requirementDoc string) (string, error) {
	system, user := prompts(artifact, requirementDoc)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: generationTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func prompts(artifact types.Artifact, requirementDoc string) (system, user string) {
	switch artifact {
	case types.ArtifactUserStories:
		system = "You are an expert requirements analyst and agile coach. " +
			"Analyze the user's requirements document and produce high-quality user stories " +
			"in the form: As a [role], I want [capability], so that [benefit]. " +
			"Cover every feature in the document and group the stories appropriately."
		user = "Based on the following requirements document, generate a comprehensive set of user stories:\n\n" + requirementDoc
	case types.ArtifactEntities:
		system = "You are an expert requirements analyst and data modeler. " +
			"Analyze the user's requirements document and identify the key business entities. " +
			"For each entity list its attributes, data types, constraints and relationships. " +
			"Return structured JSON so a client can parse and display it."
		user = "Based on the following requirements document, identify and describe every key business entity:\n\n" + requirementDoc
	case types.ArtifactDBDesign:
		system = "You are an expert database designer and architect. " +
			"Analyze the user's requirements document and produce a detailed database design: " +
			"table structures, column definitions, primary/foreign keys and index suggestions. " +
			"Balance normalization against performance and include a SQL script for the schema."
		user = "Based on the following requirements document, design an optimized database schema:\n\n" + requirementDoc
	}
	return system, user
}
