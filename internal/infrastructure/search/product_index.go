package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// ProductIndex mirrors catalog products into an Elasticsearch index for full-text search.
type ProductIndex struct {
	es     *elasticsearch.Client
	index  string
	logger *logrus.Logger
}

func NewProductIndex(es *elasticsearch.Client, index string, logger *logrus.Logger) *ProductIndex {
	return &ProductIndex{es: es, index: index, logger: logger}
}

const productMapping = `{
  "mappings": {
    "properties": {
      "name":           {"type": "text"},
      "description":    {"type": "text"},
      "category":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "price":          {"type": "double"},
      "average_rating": {"type": "double"},
      "updated_at":     {"type": "date"}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (x *ProductIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(c, x.es)
	if err != nil {
		return fmt.Errorf("es index exists: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es index exists: %s", res.Status())
	}

	res, err = esapi.IndicesCreateRequest{Index: x.index, Body: strings.NewReader(productMapping)}.Do(c, x.es)
	if err != nil {
		return fmt.Errorf("es create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es create index: %s", res.Status())
	}
	if x.logger != nil {
		x.logger.WithField("index", x.index).Info("elasticsearch index created")
	}
	return nil
}

type productDoc struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	AverageRating float64   `json:"average_rating"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Index upserts the searchable fields of p.
func (x *ProductIndex) Index(ctx context.Context, p *entity.Product) error {
	b, err := json.Marshal(productDoc{
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Price:         p.Price,
		AverageRating: p.AverageRating,
		UpdatedAt:     p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: p.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return fmt.Errorf("es index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (x *ProductIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.index, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return fmt.Errorf("es delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es delete: %s", res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching product ids ordered by relevance.
func (x *ProductIndex) Search(ctx context.Context, q string, size int) ([]string, error) {
	body, err := json.Marshal(map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"name^3", "category^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	})
	if err != nil {
		return nil, err
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.es.Search(
		x.es.Search.WithContext(c),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("es search decode: %w", err)
	}
	ids := make([]string, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		ids = append(ids, h.ID)
	}
	if x.logger != nil {
		x.logger.WithFields(logrus.Fields{"q": q, "hits": len(ids)}).Debug("product search")
	}
	return ids, nil
}
