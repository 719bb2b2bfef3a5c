// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"strings"

	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/records"
)

// RecordHit is one semantic match against the record index.
type RecordHit struct {
	RecordID string
	Ailment  string
	Summary  string
	Score    float32
}

// RecordIndex embeds health record summaries into a vector collection and
// answers semantic lookups, scoped to the subject who owns the records.
type RecordIndex struct {
	store      VectorStore
	embedder   Embedder
	collection string
	threshold  float32
}

// NewRecordIndex creates an index over the given collection.
func NewRecordIndex(store VectorStore, embedder Embedder, collection string) *RecordIndex {
	return &RecordIndex{
		store:      store,
		embedder:   embedder,
		collection: collection,
		threshold:  0.3,
	}
}

// Prepare ensures the collection exists, probing the embedder once for the
// vector size.
func (ri *RecordIndex) Prepare(ctx context.Context) error {
	vec, err := ri.embedder.Embed(ctx, "health record")
	if err != nil {
		return errors.New(errors.CodeLLMError, "embedder probe failed", err)
	}
	return ri.store.CreateCollection(ctx, ri.collection, uint64(len(vec)))
}

// IndexRecord embeds one record summary and upserts it.
func (ri *RecordIndex) IndexRecord(ctx context.Context, subjectID string, rec records.RecordSummary) error {
	text := indexText(rec)
	vec, err := ri.embedder.Embed(ctx, text)
	if err != nil {
		return errors.New(errors.CodeLLMError, "embedding record failed", err).
			WithContext("record_id", rec.ID)
	}
	return ri.store.Upsert(ctx, ri.collection, []Point{{
		ID:     rec.ID,
		Vector: vec,
		Payload: map[string]any{
			"subject_id": subjectID,
			"record_id":  rec.ID,
			"ailment":    rec.Ailment,
			"summary":    rec.LaymanSummary,
		},
	}})
}

// Search embeds the question and returns matching records owned by the
// subject. Hits belonging to other subjects are dropped.
func (ri *RecordIndex) Search(ctx context.Context, subjectID, question string, limit int) ([]RecordHit, error) {
	vec, err := ri.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "embedding question failed", err)
	}

	// Over-fetch so subject scoping does not starve the result set.
	results, err := ri.store.Search(ctx, ri.collection, vec, limit*4, ri.threshold)
	if err != nil {
		return nil, err
	}

	var hits []RecordHit
	for _, res := range results {
		owner, _ := res.Payload["subject_id"].(string)
		if owner != subjectID {
			continue
		}
		recordID, _ := res.Payload["record_id"].(string)
		ailment, _ := res.Payload["ailment"].(string)
		summary, _ := res.Payload["summary"].(string)
		hits = append(hits, RecordHit{
			RecordID: recordID,
			Ailment:  ailment,
			Summary:  summary,
			Score:    res.Score,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func indexText(rec records.RecordSummary) string {
	parts := []string{rec.Title, rec.Ailment, rec.LaymanSummary, rec.MedicalSummary}
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
