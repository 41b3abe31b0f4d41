package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/saleswire/server/internal/agent/catalog"
	logx "github.com/saleswire/server/pkg/logger"
)

// Index holds one embedding per catalog template, in catalog order.
type Index struct {
	entries []indexEntry
	byID    map[catalog.TemplateID]int
}

type indexEntry struct {
	id     catalog.TemplateID
	vector []float32
}

// BuildIndex embeds every template question. Failing to embed any template is
// fatal; retrieval cannot rank against a partial index.
func BuildIndex(ctx context.Context, reg *catalog.Registry, emb Embedder) (*Index, error) {
	templates := reg.All()
	ix := &Index{
		entries: make([]indexEntry, 0, len(templates)),
		byID:    make(map[catalog.TemplateID]int, len(templates)),
	}
	for _, t := range templates {
		vector, err := emb.EmbedDocument(ctx, t.Question)
		if err != nil {
			return nil, fmt.Errorf("index template %s: %w", t.ID, err)
		}
		ix.byID[t.ID] = len(ix.entries)
		ix.entries = append(ix.entries, indexEntry{id: t.ID, vector: vector})
	}
	logx.Info().Int("templates", len(ix.entries)).Msg("Catalog embedding index built")
	return ix, nil
}

// Len returns the number of indexed templates.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Rank returns the candidate most similar to the query vector. Candidates
// missing from the index are skipped; ties keep the earliest candidate.
func (ix *Index) Rank(query []float32, candidates []catalog.TemplateID) (catalog.TemplateID, bool) {
	var (
		bestID    catalog.TemplateID
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, id := range candidates {
		pos, ok := ix.byID[id]
		if !ok {
			continue
		}
		score := cosine(query, ix.entries[pos].vector)
		if score > bestScore {
			bestScore = score
			bestID = id
			found = true
		}
	}
	return bestID, found
}

// cosine computes cosine similarity, accumulating in float64 for stability.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
