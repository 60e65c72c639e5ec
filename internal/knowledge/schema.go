// Package knowledge makes onboarded device documentation searchable through
// a Weaviate collection, chunked for retrieval.
package knowledge

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// DeviceDocClassName is the Weaviate class holding documentation chunks.
const DeviceDocClassName = "DeviceDoc"

func deviceDocSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       DeviceDocClassName,
		Description: "Chunked device documentation indexed during onboarding",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "deviceId",
				DataType:        []string{"text"},
				Description:     "Device the documentation belongs to",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Chunk identifier: filename_part_N",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "parentSource",
				DataType:        []string{"text"},
				Description:     "Original uploaded filename",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Chunk text",
				Tokenization: "word",
			},
			{
				Name:        "ingestedAt",
				DataType:    []string{"int"},
				Description: "Ingestion time, unix millis",
			},
		},
	}
}

// EnsureSchema creates the DeviceDoc class when missing. Idempotent.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	if _, err := client.Schema().ClassGetter().WithClassName(DeviceDocClassName).Do(ctx); err == nil {
		return nil
	}
	if err := client.Schema().ClassCreator().WithClass(deviceDocSchema()).Do(ctx); err != nil {
		return fmt.Errorf("knowledge: creating %s schema: %w", DeviceDocClassName, err)
	}
	return nil
}
