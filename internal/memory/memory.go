// Package memory implements the translation memory: storage of translation
// pairs and bidirectional, deduplicated similarity search over them.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/verba-dev/verba/internal/observability"
	"github.com/verba-dev/verba/internal/vector"
)

// Metadata keys under which a pair is stored in the index.
const (
	metaSourceLanguage = "source_language"
	metaTargetLanguage = "target_language"
	metaSentence       = "sentence"
	metaTranslation    = "translation"
)

// ErrValidation marks rejected input; it never reaches the index.
var ErrValidation = errors.New("invalid translation pair")

// Example is one retrieved translation example, ready for prompt assembly.
type Example struct {
	Sentence    string `json:"sentence"`
	Translation string `json:"translation"`
}

// TranslationMemory stores pairs in a vector index and retrieves the most
// similar ones for a query sentence.
type TranslationMemory struct {
	index vector.Index
}

// New creates a TranslationMemory on top of the given index.
func New(index vector.Index) *TranslationMemory {
	return &TranslationMemory{index: index}
}

// AddPair stores one translation pair under a fresh unique ID. The source
// sentence is the embedded document; the full pair rides along as metadata.
// Identical content stored twice yields two distinct records.
func (m *TranslationMemory) AddPair(ctx context.Context, sourceLang, targetLang, sentence, translation string) error {
	ctx, span := observability.StartMemorySpan(ctx, "add_pair")
	defer span.End()

	if sourceLang == "" || targetLang == "" {
		err := fmt.Errorf("%w: language codes must be non-empty", ErrValidation)
		observability.RecordError(span, err)
		return err
	}
	if sentence == "" || translation == "" {
		err := fmt.Errorf("%w: sentence and translation must be non-empty", ErrValidation)
		observability.RecordError(span, err)
		return err
	}

	doc := vector.Document{
		ID:      uuid.NewString(),
		Content: sentence,
		Metadata: map[string]string{
			metaSourceLanguage: sourceLang,
			metaTargetLanguage: targetLang,
			metaSentence:       sentence,
			metaTranslation:    translation,
		},
	}
	if err := m.index.Store(ctx, doc); err != nil {
		err = fmt.Errorf("storing pair: %w", err)
		observability.RecordError(span, err)
		return err
	}
	return nil
}

// SearchSimilar returns up to limit examples similar to query, favoring
// pairs stored in the requested direction. Pairs stored in the reverse
// direction are equally valid evidence, so a second query covers them and
// their fields are swapped on the way out. Duplicate (sentence,
// translation) content is emitted once; direct matches always precede
// reverse matches, each group in backend rank order.
func (m *TranslationMemory) SearchSimilar(ctx context.Context, query, sourceLang, targetLang string, limit int) ([]Example, error) {
	ctx, span := observability.StartMemorySpan(ctx, "search_similar")
	defer span.End()
	span.SetAttributes(
		attribute.String("memory.source_language", sourceLang),
		attribute.String("memory.target_language", targetLang),
		attribute.Int("memory.limit", limit),
	)

	if limit <= 0 {
		return nil, nil
	}

	// Oversample both directions so deduplication still fills the limit.
	direct, err := m.index.Query(ctx, query, 2*limit, map[string]string{
		metaSourceLanguage: sourceLang,
		metaTargetLanguage: targetLang,
	})
	if err != nil {
		err = fmt.Errorf("direct search: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}

	reverse, err := m.index.Query(ctx, query, 2*limit, map[string]string{
		metaSourceLanguage: targetLang,
		metaTargetLanguage: sourceLang,
	})
	if err != nil {
		err = fmt.Errorf("reverse search: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}

	seen := make(map[Example]struct{}, limit)
	results := make([]Example, 0, limit)

	for _, hit := range direct {
		if len(results) == limit {
			break
		}
		ex := Example{
			Sentence:    hit.Metadata[metaSentence],
			Translation: hit.Metadata[metaTranslation],
		}
		if _, dup := seen[ex]; dup {
			continue
		}
		seen[ex] = struct{}{}
		results = append(results, ex)
	}

	for _, hit := range reverse {
		if len(results) == limit {
			break
		}
		// Stored (a→b) pairs serve (b→a) queries with the sides swapped.
		ex := Example{
			Sentence:    hit.Metadata[metaTranslation],
			Translation: hit.Metadata[metaSentence],
		}
		if _, dup := seen[ex]; dup {
			continue
		}
		seen[ex] = struct{}{}
		results = append(results, ex)
	}

	span.SetAttributes(attribute.Int("memory.results", len(results)))
	return results, nil
}
