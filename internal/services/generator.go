package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
)

// DefaultCLITimeout bounds one invocation of the AI CLI.
const DefaultCLITimeout = 5 * time.Minute

// Generator writes a document for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// VertexGenerator generates documents with a Vertex AI Gemini model.
type VertexGenerator struct {
	client *gcp.VertexClient
}

// NewVertexGenerator wraps an initialised Vertex client.
func NewVertexGenerator(client *gcp.VertexClient) *VertexGenerator {
	return &VertexGenerator{client: client}
}

func (g *VertexGenerator) Model() string { return g.client.ModelName }

func (g *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.DocumentModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// CLIGenerator runs an external AI command line tool. The prompt is written
// to its stdin and its stdout is the document.
type CLIGenerator struct {
	argv    []string
	timeout time.Duration
}

// NewCLIGenerator splits command into argv. No shell is involved.
func NewCLIGenerator(command string, timeout time.Duration) (*CLIGenerator, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("generator CLI command cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	return &CLIGenerator{argv: argv, timeout: timeout}, nil
}

func (g *CLIGenerator) Model() string { return "cli:" + g.argv[0] }

func (g *CLIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.argv[0], g.argv[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s", g.argv[0], g.timeout)
		}
		return "", fmt.Errorf("%s failed: %w: %s", g.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// GeneratorFromEnv selects the backend named by GENERATOR_BACKEND ("vertex"
// or "cli"). The returned close function releases backend clients.
func GeneratorFromEnv(ctx context.Context, projectID string) (Generator, func() error, error) {
	backend := gcp.GetEnv("GENERATOR_BACKEND", "vertex")
	switch backend {
	case "cli":
		timeout, err := gcp.GetEnvDuration("GENERATOR_CLI_TIMEOUT", DefaultCLITimeout)
		if err != nil {
			return nil, nil, err
		}
		gen, err := NewCLIGenerator(gcp.GetEnv("GENERATOR_CLI_COMMAND", ""), timeout)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using CLI generator.", "model", gen.Model())
		return gen, func() error { return nil }, nil
	case "vertex":
		client, err := gcp.NewVertexClient(ctx, projectID,
			gcp.GetEnv("VERTEX_AI_REGION", "europe-west3"),
			gcp.GetEnv("VERTEX_AI_MODEL", "gemini-1.5-pro"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		slog.Info("Using Vertex AI generator.", "model", client.ModelName)
		return NewVertexGenerator(client), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown GENERATOR_BACKEND %q", backend)
}
