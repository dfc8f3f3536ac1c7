// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient wraps the Elasticsearch client used by the concept
// store. Vocabulary indices are named "<prefix>_<vocabulary>".
type ElasticsearchClient struct {
	Client      *elasticsearch.Client
	IndexPrefix string
}

// NewElasticsearch creates a client for the configured cluster.
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		RetryOnStatus: []int{502, 503, 504},
		MaxRetries:    3,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es, IndexPrefix: cfg.IndexPrefix}, nil
}

// Ping tests the cluster connection.
func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(
		c.Client.Ping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}

	return nil
}

// IndexFor returns the index name holding the given vocabulary's concepts.
func (c *ElasticsearchClient) IndexFor(vocabulary string) string {
	return c.IndexPrefix + "_" + strings.ToLower(vocabulary)
}

// IndexExists reports whether a vocabulary index has been created, used by
// setup checks before the concept store starts serving lookups.
func (c *ElasticsearchClient) IndexExists(ctx context.Context, vocabulary string) (bool, error) {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.IndexFor(vocabulary)},
	}
	res, err := req.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("elasticsearch index check failed: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	return res.StatusCode == 200, nil
}
