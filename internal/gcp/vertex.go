package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// DocumentWriterSystemPrompt frames the model as a German public procurement author.
const DocumentWriterSystemPrompt = `Du bist eine erfahrene Vergabefachkraft im öffentlichen Auftragswesen in Deutschland.
Du verfasst Vergabeunterlagen nach GWB, VgV und UVgO in sachlicher, rechtssicherer Sprache.
Halte dich strikt an die Angaben des Auftraggebers und erfinde keine Fakten. Wo Angaben fehlen,
setze einen klar markierten Platzhalter in eckigen Klammern, z. B. [Angabe Auftraggeber].
Antworte ausschließlich mit dem fertigen Dokument in Markdown, ohne Vorbemerkung.`

// VertexClient holds the generative model used to author procurement documents.
type VertexClient struct {
	DocumentModel *genai.GenerativeModel
	ModelName     string
	baseClient    *genai.Client
}

// NewVertexClient creates a new client configured for document authoring.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	documentModel := baseClient.GenerativeModel(modelName)
	documentModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DocumentWriterSystemPrompt)},
	}
	documentModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: genai.Ptr[int32](8192),
	}

	return &VertexClient{
		DocumentModel: documentModel,
		ModelName:     modelName,
		baseClient:    baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
