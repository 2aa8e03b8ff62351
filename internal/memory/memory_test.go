package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/verba-dev/verba/internal/vector"
)

// fakeIndex scripts query results per language direction and records calls.
type fakeIndex struct {
	stored   []vector.Document
	results  map[string][]vector.Hit // keyed by "src>tgt"
	lastK    []int
	storeErr error
	queryErr error
}

func directionKey(filter map[string]string) string {
	return filter["source_language"] + ">" + filter["target_language"]
}

func (f *fakeIndex) Store(ctx context.Context, doc vector.Document) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, doc)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, text string, k int, filter map[string]string) ([]vector.Hit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.lastK = append(f.lastK, k)
	hits := f.results[directionKey(filter)]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeIndex) Close() error { return nil }

func pairHit(id, src, tgt, sentence, translation string) vector.Hit {
	return vector.Hit{
		ID:      id,
		Content: sentence,
		Metadata: map[string]string{
			"source_language": src,
			"target_language": tgt,
			"sentence":        sentence,
			"translation":     translation,
		},
	}
}

func TestAddPair_StoresDocument(t *testing.T) {
	idx := &fakeIndex{}
	mem := New(idx)

	if err := mem.AddPair(context.Background(), "en", "it", "Hello", "Ciao"); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	if len(idx.stored) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(idx.stored))
	}

	doc := idx.stored[0]
	if doc.ID == "" {
		t.Error("expected a generated ID")
	}
	if doc.Content != "Hello" {
		t.Errorf("expected sentence as document content, got %q", doc.Content)
	}
	want := map[string]string{
		"source_language": "en",
		"target_language": "it",
		"sentence":        "Hello",
		"translation":     "Ciao",
	}
	for k, v := range want {
		if doc.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, doc.Metadata[k], v)
		}
	}
}

func TestAddPair_DuplicateContentGetsDistinctIDs(t *testing.T) {
	idx := &fakeIndex{}
	mem := New(idx)

	for i := 0; i < 2; i++ {
		if err := mem.AddPair(context.Background(), "en", "it", "Hello", "Ciao"); err != nil {
			t.Fatalf("AddPair: %v", err)
		}
	}
	if len(idx.stored) != 2 {
		t.Fatalf("expected 2 stored documents, got %d", len(idx.stored))
	}
	if idx.stored[0].ID == idx.stored[1].ID {
		t.Error("duplicate content must still get distinct identifiers")
	}
}

func TestAddPair_Validation(t *testing.T) {
	tests := []struct {
		name                            string
		src, tgt, sentence, translation string
	}{
		{"empty source language", "", "it", "Hello", "Ciao"},
		{"empty target language", "en", "", "Hello", "Ciao"},
		{"empty sentence", "en", "it", "", "Ciao"},
		{"empty translation", "en", "it", "Hello", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{}
			mem := New(idx)
			err := mem.AddPair(context.Background(), tt.src, tt.tgt, tt.sentence, tt.translation)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(idx.stored) != 0 {
				t.Error("rejected input must not reach the index")
			}
		})
	}
}

func TestAddPair_StorageErrorPropagates(t *testing.T) {
	idx := &fakeIndex{storeErr: fmt.Errorf("index unavailable")}
	mem := New(idx)

	err := mem.AddPair(context.Background(), "en", "it", "Hello", "Ciao")
	if err == nil {
		t.Fatal("expected storage error")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("storage failures must not look like validation errors")
	}
}

func TestSearchSimilar_DirectPrecedesReverse(t *testing.T) {
	idx := &fakeIndex{results: map[string][]vector.Hit{
		"en>it": {
			pairHit("1", "en", "it", "Good morning", "Buongiorno"),
			pairHit("2", "en", "it", "Good evening", "Buonasera"),
		},
		"it>en": {
			pairHit("3", "it", "en", "Buonanotte", "Good night"),
		},
	}}
	mem := New(idx)

	got, err := mem.SearchSimilar(context.Background(), "Good day", "en", "it", 4)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}

	want := []Example{
		{Sentence: "Good morning", Translation: "Buongiorno"},
		{Sentence: "Good evening", Translation: "Buonasera"},
		{Sentence: "Good night", Translation: "Buonanotte"}, // reverse match, swapped
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSearchSimilar_ReverseMatchesAreSwapped(t *testing.T) {
	idx := &fakeIndex{results: map[string][]vector.Hit{
		"it>en": {pairHit("1", "it", "en", "Ciao", "Hello")},
	}}
	mem := New(idx)

	got, err := mem.SearchSimilar(context.Background(), "Hello", "en", "it", 4)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Sentence != "Hello" || got[0].Translation != "Ciao" {
		t.Errorf("reverse match not swapped: %+v", got[0])
	}
}

func TestSearchSimilar_DeduplicatesByContent(t *testing.T) {
	idx := &fakeIndex{results: map[string][]vector.Hit{
		"en>it": {
			pairHit("1", "en", "it", "Hello", "Ciao"),
			pairHit("2", "en", "it", "Hello", "Ciao"), // distinct ID, same content
		},
		"it>en": {
			pairHit("3", "it", "en", "Ciao", "Hello"), // swaps to ("Hello", "Ciao")
			pairHit("4", "it", "en", "Buongiorno", "Good morning"),
		},
	}}
	mem := New(idx)

	got, err := mem.SearchSimilar(context.Background(), "Hello", "en", "it", 4)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}

	want := []Example{
		{Sentence: "Hello", Translation: "Ciao"},
		{Sentence: "Good morning", Translation: "Buongiorno"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d deduplicated results, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSearchSimilar_TruncatesToLimit(t *testing.T) {
	idx := &fakeIndex{results: map[string][]vector.Hit{
		"en>it": {
			pairHit("1", "en", "it", "a", "x"),
			pairHit("2", "en", "it", "b", "y"),
			pairHit("3", "en", "it", "c", "z"),
		},
		"it>en": {
			pairHit("4", "it", "en", "w", "d"),
		},
	}}
	mem := New(idx)

	got, err := mem.SearchSimilar(context.Background(), "a", "en", "it", 2)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// Both index queries oversample to twice the limit.
	for _, k := range idx.lastK {
		if k != 4 {
			t.Errorf("expected candidate queries with k=4, got %d", k)
		}
	}
}

func TestSearchSimilar_EmptySetsAreNotAnError(t *testing.T) {
	mem := New(&fakeIndex{})

	got, err := mem.SearchSimilar(context.Background(), "anything", "en", "it", 4)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestSearchSimilar_NonPositiveLimit(t *testing.T) {
	idx := &fakeIndex{results: map[string][]vector.Hit{
		"en>it": {pairHit("1", "en", "it", "a", "x")},
	}}
	mem := New(idx)

	got, err := mem.SearchSimilar(context.Background(), "a", "en", "it", 0)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results for limit 0, got %v", got)
	}
	if len(idx.lastK) != 0 {
		t.Error("limit 0 must not hit the index")
	}
}

func TestSearchSimilar_QueryErrorPropagates(t *testing.T) {
	idx := &fakeIndex{queryErr: fmt.Errorf("index unavailable")}
	mem := New(idx)

	if _, err := mem.SearchSimilar(context.Background(), "a", "en", "it", 4); err == nil {
		t.Fatal("expected query error to propagate")
	}
}
