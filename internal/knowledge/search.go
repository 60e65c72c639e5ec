package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// Hit is one documentation chunk matching a search.
type Hit struct {
	DeviceID     string  `json:"deviceId"`
	Source       string  `json:"source"`
	ParentSource string  `json:"parentSource"`
	Content      string  `json:"content"`
	Score        float64 `json:"score,omitempty"`
}

// Search runs a keyword query over the indexed chunks, optionally scoped to
// one device.
func (ix *Indexer) Search(ctx context.Context, query, deviceID string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, errors.New("knowledge: empty query")
	}
	if limit <= 0 {
		limit = 5
	}

	builder := ix.client.GraphQL().Get().
		WithClassName(DeviceDocClassName).
		WithBM25(ix.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithFields(
			graphql.Field{Name: "deviceId"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "parentSource"},
			graphql.Field{Name: "content"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
		).
		WithLimit(limit)
	if deviceID != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"deviceId"}).
			WithOperator(filters.Equal).
			WithValueString(deviceID))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("knowledge: search: %s", result.Errors[0].Message)
	}

	var hits []Hit
	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	rows, ok := get[DeviceDocClassName].([]interface{})
	if !ok {
		return hits, nil
	}
	for _, row := range rows {
		fields, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		hit := Hit{
			DeviceID:     stringField(fields, "deviceId"),
			Source:       stringField(fields, "source"),
			ParentSource: stringField(fields, "parentSource"),
			Content:      stringField(fields, "content"),
		}
		if additional, ok := fields["_additional"].(map[string]interface{}); ok {
			switch score := additional["score"].(type) {
			case float64:
				hit.Score = score
			case string:
				fmt.Sscanf(score, "%f", &hit.Score)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func stringField(fields map[string]interface{}, name string) string {
	if value, ok := fields[name].(string); ok {
		return value
	}
	return ""
}
