// Package catalog indexes run artifacts for full-text search with Bleve.
// The catalog lives next to the artifacts in the output directory and
// accumulates documents across runs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// Document field names.
const (
	FieldRunID    = "run_id"
	FieldName     = "name"
	FieldKind     = "kind"
	FieldProducer = "producer"
	FieldPath     = "path"
	FieldContent  = "content"
)

const (
	// maxContentBytes caps how much of an artifact is indexed.
	maxContentBytes = 1 << 20

	// maxBatchSize is the maximum number of documents per batch.
	maxBatchSize = 100

	defaultLimit = 20
)

// Document is the indexed form of an artifact.
type Document struct {
	RunID    string `json:"run_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Producer string `json:"producer"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// Hit is one search result.
type Hit struct {
	RunID     string   `json:"run_id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Path      string   `json:"path"`
	Score     float64  `json:"score"`
	Fragments []string `json:"fragments,omitempty"`
}

// Request describes a catalog search.
type Request struct {
	Terms string
	Kind  string
	RunID string
	Limit int
}

// Catalog wraps a Bleve index.
type Catalog struct {
	index bleve.Index
}

// NewMapping creates the index mapping for artifact documents.
func NewMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = true
	content.IncludeTermVectors = true
	doc.AddFieldMappingsAt(FieldContent, content)

	for _, name := range []string{FieldRunID, FieldName, FieldKind, FieldProducer, FieldPath} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		doc.AddFieldMappingsAt(name, f)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Open opens the catalog at path, creating it if missing.
func Open(path string) (*Catalog, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Catalog{index: idx}, nil
	}

	idx, err = bleve.New(path, NewMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}
	return &Catalog{index: idx}, nil
}

// OpenMemory creates an in-memory catalog (tests).
func OpenMemory() (*Catalog, error) {
	idx, err := bleve.NewMemOnly(NewMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}
	return &Catalog{index: idx}, nil
}

// Close closes the index.
func (c *Catalog) Close() error {
	return c.index.Close()
}

// IndexArtifacts adds the textual artifacts of a run. Binary and missing
// files are skipped. It returns the number of documents indexed.
func (c *Catalog) IndexArtifacts(ctx context.Context, runID string, artifacts []domain.Artifact) (int, error) {
	log := zerolog.Ctx(ctx)
	batch := c.index.NewBatch()
	indexed := 0

	for _, a := range artifacts {
		if err := ctxutil.Canceled(ctx); err != nil {
			return indexed, err
		}
		if a.Kind == constants.ArtifactKindMetrics {
			continue
		}

		content, err := readText(a.Path)
		if err != nil {
			log.Debug().Err(err).Str("artifact", a.Name).Msg("artifact not cataloged")
			continue
		}

		doc := Document{
			RunID:    runID,
			Name:     a.Name,
			Kind:     a.Kind.String(),
			Producer: a.Producer,
			Path:     a.Path,
			Content:  content,
		}
		if err := batch.Index(runID+"/"+a.Name, doc); err != nil {
			return indexed, fmt.Errorf("failed to index %s: %w", a.Name, err)
		}
		indexed++

		if batch.Size() >= maxBatchSize {
			if err := c.index.Batch(batch); err != nil {
				return indexed, fmt.Errorf("failed to commit catalog batch: %w", err)
			}
			batch.Reset()
		}
	}

	if batch.Size() > 0 {
		if err := c.index.Batch(batch); err != nil {
			return indexed, fmt.Errorf("failed to commit catalog batch: %w", err)
		}
	}
	return indexed, nil
}

// Search runs a match query over artifact content and names.
func (c *Catalog) Search(ctx context.Context, req Request) ([]Hit, uint64, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, 0, err
	}
	if req.Terms == "" {
		return nil, 0, fmt.Errorf("%w: search terms", scribeerrors.ErrEmptyValue)
	}

	sr := bleve.NewSearchRequest(buildQuery(req))
	sr.Size = req.Limit
	if sr.Size <= 0 {
		sr.Size = defaultLimit
	}
	sr.Fields = []string{FieldRunID, FieldName, FieldKind, FieldPath}
	sr.Highlight = bleve.NewHighlight()
	sr.Highlight.AddField(FieldContent)

	res, err := c.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		hit.RunID, _ = h.Fields[FieldRunID].(string)
		hit.Name, _ = h.Fields[FieldName].(string)
		hit.Kind, _ = h.Fields[FieldKind].(string)
		hit.Path, _ = h.Fields[FieldPath].(string)
		hit.Fragments = h.Fragments[FieldContent]
		hits = append(hits, hit)
	}
	return hits, res.Total, nil
}

func buildQuery(req Request) query.Query {
	content := bleve.NewMatchQuery(req.Terms)
	content.SetField(FieldContent)

	name := bleve.NewTermQuery(req.Terms)
	name.SetField(FieldName)
	name.SetBoost(3.0)

	match := bleve.NewDisjunctionQuery(content, name)
	if req.Kind == "" && req.RunID == "" {
		return match
	}

	must := []query.Query{match}
	if req.Kind != "" {
		kq := bleve.NewTermQuery(req.Kind)
		kq.SetField(FieldKind)
		must = append(must, kq)
	}
	if req.RunID != "" {
		rq := bleve.NewTermQuery(req.RunID)
		rq.SetField(FieldRunID)
		must = append(must, rq)
	}
	return bleve.NewConjunctionQuery(must...)
}

// readText reads up to maxContentBytes of a UTF-8 file.
func readText(path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- artifact paths are produced by the pipeline
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, maxContentBytes)
	n, err := io.ReadFull(f, buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return "", err
	}
	buf = buf[:n]
	if n == maxContentBytes {
		// drop a rune split by the size cap
		for i := 0; i < utf8.UTFMax && !utf8.Valid(buf); i++ {
			buf = buf[:len(buf)-1]
		}
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: %s is not text", scribeerrors.ErrInvalidArgument, path)
	}
	return string(buf), nil
}
