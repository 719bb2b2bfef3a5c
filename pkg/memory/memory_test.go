package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/arogyalabs/medgraph/pkg/records"
)

func TestConversationWindow(t *testing.T) {
	conv := NewInMemoryConversation(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := conv.Append(ctx, "s1", Turn{Role: "user", Content: fmt.Sprintf("q%d", i)})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	turns, err := conv.Recent(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected window of 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "q2" || turns[2].Content != "q4" {
		t.Errorf("expected oldest-first window q2..q4, got %v", turns)
	}
}

func TestConversationRecentLimit(t *testing.T) {
	conv := NewInMemoryConversation(10)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		conv.Append(ctx, "s1", Turn{Role: "user", Content: fmt.Sprintf("q%d", i)})
	}

	turns, err := conv.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != 2 || turns[1].Content != "q3" {
		t.Errorf("expected the last 2 turns, got %v", turns)
	}
}

func TestConversationSessionsAreIsolated(t *testing.T) {
	conv := NewInMemoryConversation(10)
	ctx := context.Background()
	conv.Append(ctx, "s1", Turn{Role: "user", Content: "mine"})
	conv.Append(ctx, "s2", Turn{Role: "user", Content: "theirs"})

	if err := conv.Clear(ctx, "s2"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	turns, _ := conv.Recent(ctx, "s1", 0)
	if len(turns) != 1 || turns[0].Content != "mine" {
		t.Errorf("clearing one session must not touch another, got %v", turns)
	}
	turns, _ = conv.Recent(ctx, "s2", 0)
	if len(turns) != 0 {
		t.Errorf("expected cleared session to be empty, got %v", turns)
	}
}

func TestConversationAssignsIdentity(t *testing.T) {
	conv := NewInMemoryConversation(10)
	ctx := context.Background()
	conv.Append(ctx, "s1", Turn{Role: "assistant", Content: "hello"})

	turns, _ := conv.Recent(ctx, "s1", 0)
	if turns[0].ID == "" || turns[0].SessionID != "s1" || turns[0].CreatedAt.IsZero() {
		t.Errorf("expected id, session, and timestamp to be filled, got %+v", turns[0])
	}
}

type fakeVectorStore struct {
	created map[string]uint64
	points  []Point
	results []SearchResult
}

func (f *fakeVectorStore) CreateCollection(_ context.Context, name string, size uint64) error {
	if f.created == nil {
		f.created = map[string]uint64{}
	}
	f.created[name] = size
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, _ string, points []Point) error {
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ string, _ []float32, _ int, _ float32) ([]SearchResult, error) {
	return f.results, nil
}

type fakeEmbedder struct{ dims int }

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text) % (i + 2))
	}
	return vec, nil
}

func TestRecordIndexPrepareUsesEmbedderDimensions(t *testing.T) {
	store := &fakeVectorStore{}
	index := NewRecordIndex(store, fakeEmbedder{dims: 8}, "records")

	if err := index.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if store.created["records"] != 8 {
		t.Errorf("expected collection with vector size 8, got %v", store.created)
	}
}

func TestRecordIndexUpsertsPayload(t *testing.T) {
	store := &fakeVectorStore{}
	index := NewRecordIndex(store, fakeEmbedder{dims: 4}, "records")

	err := index.IndexRecord(context.Background(), "patient-1", records.RecordSummary{
		ID:            "rec-1",
		Ailment:       "asthma",
		LaymanSummary: "Mild asthma, inhaler as needed.",
	})
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if len(store.points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(store.points))
	}
	p := store.points[0]
	if p.ID != "rec-1" || p.Payload["subject_id"] != "patient-1" || p.Payload["ailment"] != "asthma" {
		t.Errorf("unexpected point payload %+v", p)
	}
}

func TestRecordIndexSearchScopesToSubject(t *testing.T) {
	store := &fakeVectorStore{results: []SearchResult{
		{ID: "rec-1", Score: 0.9, Payload: map[string]any{
			"subject_id": "patient-1", "record_id": "rec-1", "ailment": "asthma",
		}},
		{ID: "rec-2", Score: 0.8, Payload: map[string]any{
			"subject_id": "patient-2", "record_id": "rec-2", "ailment": "diabetes",
		}},
	}}
	index := NewRecordIndex(store, fakeEmbedder{dims: 4}, "records")

	hits, err := index.Search(context.Background(), "patient-1", "breathing trouble", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly the owner's hit, got %d", len(hits))
	}
	if hits[0].RecordID != "rec-1" || hits[0].Ailment != "asthma" {
		t.Errorf("unexpected hit %+v", hits[0])
	}
}
