// Package elastic executes searches against an Elasticsearch cluster,
// producing the same result shapes the in-memory engine computes
// locally.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"

	"github.com/reveald/bucketd"
)

// Backend runs searches against Elasticsearch over the official
// client. It translates the request tree into a `_search` body and
// decodes the aggregation response into the same result structs the
// local engine produces.
type Backend struct {
	client *elasticsearch.Client
	config elasticsearch.Config
}

// BackendOption is a functional option for the Backend constructor.
type BackendOption func(*Backend)

// WithScheme defines which scheme to use when communicating with
// Elasticsearch (default is "http").
//
// Example:
//
//	backend, err := elastic.NewBackend(
//	    []string{"localhost:9200"},
//	    elastic.WithScheme("https"),
//	)
func WithScheme(scheme string) BackendOption {
	return func(b *Backend) {
		b.config.Addresses = updateURLScheme(b.config.Addresses, scheme)
	}
}

func updateURLScheme(addresses []string, scheme string) []string {
	updated := make([]string, len(addresses))
	for i, addr := range addresses {
		addr = strings.TrimPrefix(addr, "http://")
		addr = strings.TrimPrefix(addr, "https://")
		updated[i] = scheme + "://" + addr
	}
	return updated
}

// WithCredentials adds username and password to requests to
// Elasticsearch.
//
// Example:
//
//	backend, err := elastic.NewBackend(
//	    []string{"localhost:9200"},
//	    elastic.WithCredentials("username", "password"),
//	)
func WithCredentials(username, password string) BackendOption {
	return func(b *Backend) {
		b.config.Username = username
		b.config.Password = password
	}
}

// WithHttpClient configures an HTTP client to use for the requests to
// Elasticsearch, for custom timeouts, TLS configuration and the like.
//
// Example:
//
//	httpClient := &http.Client{
//	    Timeout: 30 * time.Second,
//	}
//	backend, err := elastic.NewBackend(
//	    []string{"localhost:9200"},
//	    elastic.WithHttpClient(httpClient),
//	)
func WithHttpClient(httpClient *http.Client) BackendOption {
	return func(b *Backend) {
		b.config.Transport = httpClient.Transport
	}
}

// WithCACert configures a custom CA certificate for the requests to
// Elasticsearch.
//
// Example:
//
//	cert, err := os.ReadFile("ca.crt")
//	if err != nil {
//	    // Handle error
//	}
//	backend, err := elastic.NewBackend(
//	    []string{"localhost:9200"},
//	    elastic.WithCACert(cert),
//	)
func WithCACert(cert []byte) BackendOption {
	return func(b *Backend) {
		b.config.CACert = cert
	}
}

// WithClient uses an already constructed client instead of building
// one from addresses.
//
// Example:
//
//	client, err := elasticsearch.NewClient(config)
//	if err != nil {
//	    // Handle error
//	}
//	backend, err := elastic.NewBackend(nil, elastic.WithClient(client))
func WithClient(client *elasticsearch.Client) BackendOption {
	return func(b *Backend) {
		b.client = client
	}
}

// NewBackend creates a backend targeting the given Elasticsearch
// nodes.
//
// Example:
//
//	backend, err := elastic.NewBackend(
//	    []string{"localhost:9200"},
//	    elastic.WithCredentials("user", "pass"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewBackend(nodes []string, opts ...BackendOption) (*Backend, error) {
	addresses := make([]string, len(nodes))
	for i, node := range nodes {
		if !strings.HasPrefix(node, "http://") && !strings.HasPrefix(node, "https://") {
			addresses[i] = "http://" + node
		} else {
			addresses[i] = node
		}
	}

	backend := &Backend{
		config: elasticsearch.Config{
			Addresses: addresses,
		},
	}
	for _, opt := range opts {
		opt(backend)
	}

	if backend.client == nil {
		client, err := elasticsearch.NewClient(backend.config)
		if err != nil {
			return nil, errors.Wrap(err, "creating elasticsearch client")
		}
		backend.client = client
	}

	return backend, nil
}

// GetClient returns the underlying Elasticsearch client, for index
// management and advanced use cases.
//
// Example:
//
//	client := backend.GetClient()
//	res, err := client.Info()
func (b *Backend) GetClient() *elasticsearch.Client {
	return b.client
}

// Execute translates the search into a `_search` request, runs it and
// decodes the aggregation response.
//
// Example:
//
//	search := bucketd.NewSearch("products").
//	    Aggregation(aggs.Terms("prices").Field("price"))
//
//	result, err := backend.Execute(ctx, search)
//	if err != nil {
//	    // Handle error
//	}
//	fmt.Printf("matched %d documents\n", result.TotalHitCount)
func (b *Backend) Execute(ctx context.Context, search *bucketd.Search) (*bucketd.Result, error) {
	start := time.Now()

	body, err := searchBody(search)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errors.Wrap(err, "encoding search body")
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(search.Indices()...),
		b.client.Search.WithBody(&buf),
		b.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, errors.Errorf("elasticsearch returned %s: %s", res.Status(), msg)
	}

	var response searchResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}

	results, err := decodeResults(response.Aggregations, search.Aggregations())
	if err != nil {
		return nil, err
	}

	return bucketd.NewResult(search, response.Hits.Total.Value, results, time.Since(start)), nil
}

// ExecuteMultiple runs several searches sequentially and returns
// their results in request order.
func (b *Backend) ExecuteMultiple(ctx context.Context, searches []*bucketd.Search) ([]*bucketd.Result, error) {
	var results []*bucketd.Result
	for _, search := range searches {
		result, err := b.Execute(ctx, search)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
