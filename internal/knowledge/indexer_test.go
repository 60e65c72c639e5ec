package knowledge

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.uber.org/zap"

	onboarding "iot-console/internal/onboarding/domain"
)

func TestDocumentTextSkipsBinary(t *testing.T) {
	if got := documentText(onboarding.DocumentationAsset{Content: []byte{0xff, 0xfe, 0x00, 0x01}}); got != "" {
		t.Fatalf("binary content indexed as %q", got)
	}
	if got := documentText(onboarding.DocumentationAsset{Content: []byte("plain text manual")}); got != "plain text manual" {
		t.Fatalf("text content = %q", got)
	}
}

func TestSplitterForChunksLongText(t *testing.T) {
	text := strings.Repeat("The device operates between 0 and 80 degrees. ", 100)
	chunks, err := splitterFor("manual.txt").SplitText(text)
	if err != nil {
		t.Fatalf("SplitText: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several for %d bytes", len(chunks), len(text))
	}
	for _, chunk := range chunks {
		if len(chunk) > chunkSize+chunkOverlap {
			t.Fatalf("chunk of %d bytes exceeds limit", len(chunk))
		}
	}
}

func TestSplitterForMarkdownUsesHeadings(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("# Section\n")
		b.WriteString(strings.Repeat("Details about operation and care. ", 10))
		b.WriteString("\n\n")
	}
	chunks, err := splitterFor("manual.md").SplitText(b.String())
	if err != nil {
		t.Fatalf("SplitText: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
}

// Integration test; needs a reachable Weaviate.
func TestIndexAndSearchIntegration(t *testing.T) {
	host := os.Getenv("WEAVIATE_HOST")
	if host == "" {
		t.Skip("WEAVIATE_HOST not set")
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: "http"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	if err := EnsureSchema(ctx, client); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	ix, err := NewIndexer(client, zap.NewNop())
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	asset := onboarding.DocumentationAsset{
		Filename: "manual.txt",
		Size:     64,
		Content:  []byte("Replace the intake filter monthly. Operating range 0 to 80 degrees."),
	}
	if err := ix.Index(ctx, asset, "it-device-1"); err != nil {
		t.Fatalf("Index: %v", err)
	}
	hits, err := ix.Search(ctx, "intake filter", "it-device-1", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for indexed content")
	}
}
