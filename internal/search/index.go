// Package search keeps an in-memory full-text index over game titles and
// descriptions.
package search

import (
	"fmt"
	"strings"
	"sync"

	"kplays-api/internal/model"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
)

// Index is a mem-only bleve index of games.
type Index struct {
	mu  sync.RWMutex
	idx bleve.Index
}

type document struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// NewIndex creates an empty index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.IncludeTermVectors = true

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = standard.Name

	typ := bleve.NewKeywordFieldMapping()

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("description", desc)
	dm.AddFieldMappingsAt("type", typ)

	im.DefaultMapping = dm
	return im
}

func toDocument(g model.Game) document {
	return document{Title: g.Title, Description: g.Description, Type: string(g.Type)}
}

// Reindex replaces the index content with games.
func (i *Index) Reindex(games []model.Game) error {
	fresh, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, g := range games {
		if err := batch.Index(g.ID, toDocument(g)); err != nil {
			fresh.Close()
			return fmt.Errorf("failed to index game %s: %w", g.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("failed to index games: %w", err)
	}

	i.mu.Lock()
	old := i.idx
	i.idx = fresh
	i.mu.Unlock()

	return old.Close()
}

// Upsert indexes or re-indexes one game.
func (i *Index) Upsert(g model.Game) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx.Index(g.ID, toDocument(g))
}

// Delete removes a game from the index.
func (i *Index) Delete(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx.Delete(id)
}

// Count returns the number of indexed games.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx.DocCount()
}

// Search returns the IDs of matching games, best match first. Each term
// matches whole words or word prefixes; titles weigh more than descriptions.
// A category other than all restricts results to that type.
func (i *Index) Search(term string, category model.Category, limit int) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(term))
	if len(tokens) == 0 {
		return []string{}, nil
	}

	var qs []bleveQuery.Query
	for _, tok := range tokens {
		qt := bleve.NewMatchQuery(tok)
		qt.SetField("title")
		qt.SetBoost(4.0)
		qs = append(qs, qt)

		qtp := bleve.NewPrefixQuery(tok)
		qtp.SetField("title")
		qtp.SetBoost(3.0)
		qs = append(qs, qtp)

		qd := bleve.NewMatchQuery(tok)
		qd.SetField("description")
		qd.SetBoost(1.5)
		qs = append(qs, qd)

		qdp := bleve.NewPrefixQuery(tok)
		qdp.SetField("description")
		qs = append(qs, qdp)
	}

	var q bleveQuery.Query = bleve.NewDisjunctionQuery(qs...)
	if category != "" && category != model.CategoryAll {
		tq := bleve.NewTermQuery(string(category))
		tq.SetField("type")
		q = bleve.NewConjunctionQuery(q, tq)
	}

	if limit <= 0 {
		limit = 50
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	res, err := i.idx.Search(bleve.NewSearchRequestOptions(q, limit, 0, false))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.idx.Close()
}
