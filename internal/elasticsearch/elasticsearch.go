package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"example.com/backstage/services/yard/config"
)

// ErrStaleDocument is returned when the index already holds a newer version
// of the document
var ErrStaleDocument = errors.New("index holds a newer document version")

// Client is the subset of Elasticsearch the TAT projection needs
type Client interface {
	// EnsureIndex creates the index with the TAT mapping when it is missing
	EnsureIndex(ctx context.Context) error
	// IndexDocument writes a document using external versioning, so a write
	// carrying a lower version than the stored one fails with ErrStaleDocument
	IndexDocument(ctx context.Context, id string, version int, document []byte) error
	SearchDocuments(ctx context.Context, query interface{}) ([]json.RawMessage, error)
}

type esClient struct {
	client *elasticsearch.Client
	index  string
}

// tatMapping keeps filter fields as keywords so term queries match exactly
const tatMapping = `{
  "mappings": {
    "properties": {
      "journey_id":        {"type": "keyword"},
      "truck_number":      {"type": "keyword"},
      "vehicle_number":    {"type": "keyword"},
      "transporter":       {"type": "keyword"},
      "supplier_name":     {"type": "keyword"},
      "depot_name":        {"type": "keyword"},
      "material_type":     {"type": "keyword"},
      "status":            {"type": "keyword"},
      "next_milestone":    {"type": "keyword"},
      "is_transshipment":  {"type": "boolean"},
      "arrival_date_time": {"type": "date"},
      "exited_at":         {"type": "date"},
      "actual_minutes":    {"type": "float"},
      "ideal_minutes":     {"type": "integer"},
      "percent_over":      {"type": "float"},
      "severity":          {"type": "keyword"},
      "version":           {"type": "long"},
      "indexed_at":        {"type": "date"}
    }
  }
}`

// NewClient connects to the cluster and makes sure the TAT index exists
func NewClient(ctx context.Context, cfg config.ElasticsearchConfig) (Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.String())
	}

	c := &esClient{client: client, index: cfg.Index}
	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *esClient) EnsureIndex(ctx context.Context) error {
	exists, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", e.index, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  strings.NewReader(tatMapping),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another replica created it first
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("create index %s: %s %s", e.index, res.Status(), body)
	}
	return nil
}

func (e *esClient) IndexDocument(ctx context.Context, id string, version int, document []byte) error {
	res, err := esapi.IndexRequest{
		Index:       e.index,
		DocumentID:  id,
		Body:        bytes.NewReader(document),
		Version:     &version,
		VersionType: "external_gte",
		Refresh:     "wait_for",
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", id, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusConflict:
		return fmt.Errorf("document %s version %d: %w", id, version, ErrStaleDocument)
	case res.IsError():
		return fmt.Errorf("index document %s: %s", id, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *esClient) SearchDocuments(ctx context.Context, query interface{}) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", e.index, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	docs := make([]json.RawMessage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
