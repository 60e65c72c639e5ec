package knowledge

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	onboarding "iot-console/internal/onboarding/domain"
)

const (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10
)

var markdownSeparators = []string{
	"\n# ", "\n## ", "\n### ", "\n#### ",
	"\n\n", "\n", " ", "",
}

// Indexer chunks uploaded documentation and batch-imports the chunks into
// Weaviate. Chunk ids are content-addressed, so re-indexing the same
// document overwrites instead of duplicating.
type Indexer struct {
	client *weaviate.Client
	logger *zap.Logger
}

// NewIndexer constructs an indexer.
func NewIndexer(client *weaviate.Client, logger *zap.Logger) (*Indexer, error) {
	if client == nil {
		return nil, errors.New("knowledge: nil weaviate client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{client: client, logger: logger}, nil
}

// Index implements the orchestrator's knowledge port.
func (ix *Indexer) Index(ctx context.Context, asset onboarding.DocumentationAsset, deviceID string) error {
	if asset.Empty() {
		return errors.New("knowledge: empty documentation asset")
	}
	text := documentText(asset)
	if strings.TrimSpace(text) == "" {
		ix.logger.Warn("knowledge_no_indexable_text",
			zap.String("file", asset.Filename),
			zap.String("content_type", asset.ContentType),
		)
		return nil
	}

	splitter := splitterFor(asset.Filename)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("knowledge: split %s: %w", asset.Filename, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		hash := sha256.Sum256([]byte(deviceID + "\x00" + chunk))
		chunkUUID, _ := uuid.FromBytes(hash[:16])
		objects[i] = &models.Object{
			Class: DeviceDocClassName,
			ID:    strfmt.UUID(chunkUUID.String()),
			Properties: map[string]interface{}{
				"deviceId":     deviceID,
				"source":       fmt.Sprintf("%s_part_%d", asset.Filename, i+1),
				"parentSource": asset.Filename,
				"content":      chunk,
				"ingestedAt":   now,
			},
		}
	}

	resp, err := ix.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("knowledge: batch import: %w", err)
	}
	indexed, failed := 0, 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			indexed++
			continue
		}
		failed++
		if item.Result != nil && item.Result.Errors != nil {
			for _, itemErr := range item.Result.Errors.Error {
				ix.logger.Warn("knowledge_chunk_failed",
					zap.String("file", asset.Filename),
					zap.String("error", itemErr.Message),
				)
			}
		}
	}
	if failed > 0 && indexed == 0 {
		return fmt.Errorf("knowledge: all %d chunks failed to index", failed)
	}
	ix.logger.Info("knowledge_indexed",
		zap.String("device_id", deviceID),
		zap.String("file", asset.Filename),
		zap.Int("chunks", indexed),
		zap.Int("failed", failed),
	)
	return nil
}

// documentText extracts indexable text from the asset. Binary formats the
// console cannot decode locally are skipped rather than indexed as noise.
func documentText(asset onboarding.DocumentationAsset) string {
	if !utf8.Valid(asset.Content) {
		return ""
	}
	return string(asset.Content)
}

func splitterFor(filename string) textsplitter.TextSplitter {
	if strings.HasSuffix(strings.ToLower(filename), ".md") {
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
}
