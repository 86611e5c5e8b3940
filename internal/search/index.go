package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	FieldName  = "name_folded"
	FieldBrand = "brand_folded"

	DefaultLimit = 20
	MaxLimit     = 100
)

// Document is what gets indexed for each product. Only folded text is
// stored; the full record lives in the KV store under the same id.
type Document struct {
	NameFolded  string `json:"name_folded"`
	BrandFolded string `json:"brand_folded,omitempty"`
}

// NewDocument folds name and brand into an index document.
func NewDocument(name, brand string) Document {
	return Document{NameFolded: Fold(name), BrandFolded: Fold(brand)}
}

// ClampLimit applies the default and maximum result counts.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NewMapping builds the index mapping used when creating a fresh index.
func NewMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name
	textField.Store = false
	textField.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldName, textField)
	doc.AddFieldMappingsAt(FieldBrand, textField)

	im.DefaultMapping = doc
	return im
}

// OpenOrCreate opens the bleve index at path, creating an empty one when the
// path does not exist yet.
func OpenOrCreate(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, NewMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index %s: %w", path, err)
	}
	return idx, nil
}

// BuildQuery turns free text into a ranked disjunction:
//
//   - exact phrase on the name (boost 10)
//   - prefix on the last token, for type-ahead (boost 5)
//   - brand match (boost 2)
//   - plain token match, plus fuzzy matching for tokens of 4+ characters
//
// It returns nil when the folded text is empty.
func BuildQuery(text string) query.Query {
	folded := Fold(text)
	if folded == "" {
		return nil
	}
	tokens := strings.Fields(folded)

	phrase := bleve.NewMatchPhraseQuery(folded)
	phrase.SetField(FieldName)
	phrase.SetBoost(10)

	prefix := bleve.NewPrefixQuery(tokens[len(tokens)-1])
	prefix.SetField(FieldName)
	prefix.SetBoost(5)

	brand := bleve.NewMatchQuery(folded)
	brand.SetField(FieldBrand)
	brand.SetBoost(2)

	match := bleve.NewMatchQuery(folded)
	match.SetField(FieldName)

	disjuncts := []query.Query{phrase, prefix, brand, match}
	for _, token := range tokens {
		if len(token) < 4 {
			continue
		}
		fuzzy := bleve.NewFuzzyQuery(token)
		fuzzy.SetField(FieldName)
		fuzzy.SetFuzziness(1)
		if len(token) >= 8 {
			fuzzy.SetFuzziness(2)
		}
		disjuncts = append(disjuncts, fuzzy)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

// Run executes text against idx and returns the matching document ids in
// relevance order.
func Run(idx bleve.Index, text string, limit int) ([]string, error) {
	q := BuildQuery(text)
	if q == nil {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(q, ClampLimit(limit), 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
