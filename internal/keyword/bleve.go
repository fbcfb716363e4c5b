package keyword

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// BleveIndex implements Index with a Bleve full-text index. Scores are
// max-normalized per query so they land in [0,1] like the overlap index.
type BleveIndex struct {
	index bleve.Index
}

type bleveDoc struct {
	Content string `json:"content"`
}

// NewBleveIndex creates or opens a Bleve index at path.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("bleve backend requires an index path")
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so exact terms
	// from code and error messages match as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func (b *BleveIndex) Index(id int64, content string) error {
	return b.index.Index(strconv.FormatInt(id, 10), bleveDoc{Content: content})
}

func (b *BleveIndex) Delete(id int64) error {
	return b.index.Delete(strconv.FormatInt(id, 10))
}

func (b *BleveIndex) Search(query string, limit int) ([]Result, error) {
	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	if limit > 0 {
		req.Size = limit
	}
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	var maxScore float64
	for _, hit := range res.Hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		score := hit.Score
		if maxScore > 0 {
			score /= maxScore
		}
		results = append(results, Result{ID: id, Score: score})
	}
	return results, nil
}

func (b *BleveIndex) Len() int {
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Save is a no-op: Bleve persists as documents are indexed.
func (b *BleveIndex) Save(string) error { return nil }

// Load is a no-op: NewBleveIndex reopens an existing index.
func (b *BleveIndex) Load(string) error { return nil }

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
