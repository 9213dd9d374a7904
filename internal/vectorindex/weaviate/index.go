// Package weaviate implements vectorindex.Index against a Weaviate server.
// Vectors are supplied by the caller (vectorizer "none") and ranked by
// cosine distance.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/mnemolab/mnemo/internal/vectorindex"
)

type Index struct {
	client  *weaviate.Client
	baseURL string // host:port without scheme
	class   string
}

// New builds a client for the Weaviate at baseURL (host:port, no scheme).
// Callers run Bootstrap to ensure the class exists; the constructor does
// not touch the network.
func New(baseURL, class string) (*Index, error) {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Index{client: cl, baseURL: baseURL, class: class}, nil
}

// Bootstrap creates the class if it does not exist yet.
func (i *Index) Bootstrap(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ex, err := i.client.Schema().ClassGetter().WithClassName(i.class).Do(cctx)
	if err == nil && ex != nil {
		return nil
	}

	desired := &models.Class{
		Class:      i.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "memoryId", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "metadata", DataType: []string{"text"}},
		},
		VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
	}
	if err := i.client.Schema().ClassCreator().WithClass(desired).Do(cctx); err != nil {
		return fmt.Errorf("create class %s: %w", i.class, err)
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, id string, vec []float32, content string, metadata map[string]interface{}) error {
	props := map[string]interface{}{
		"memoryId": id,
		"content":  content,
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			props["metadata"] = string(b)
		}
	}
	_, err := i.client.Data().Creator().
		WithClassName(i.class).
		WithID(id).
		WithProperties(props).
		WithVector(vec).
		Do(ctx)
	if err == nil {
		return nil
	}
	if !isAlreadyExists(err) {
		return err
	}
	return i.client.Data().Updater().
		WithClassName(i.class).
		WithID(id).
		WithProperties(props).
		WithVector(vec).
		Do(ctx)
}

func (i *Index) Remove(ctx context.Context, id string) error {
	err := i.client.Data().Deleter().
		WithClassName(i.class).
		WithID(id).
		Do(ctx)
	if err == nil || isNotFound(err) {
		return nil
	}
	return err
}

func (i *Index) Search(ctx context.Context, vec []float32, topN int, candidateIDs []string) ([]vectorindex.Hit, error) {
	if topN <= 0 {
		return nil, nil
	}
	if candidateIDs != nil && len(candidateIDs) == 0 {
		return nil, nil
	}

	nv := (&gql.NearVectorArgumentBuilder{}).WithVector(vec)

	req := i.client.GraphQL().Get().
		WithClassName(i.class).
		WithNearVector(nv).
		WithLimit(topN).
		WithFields(
			gql.Field{Name: "memoryId"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "distance"}}},
		)
	if candidateIDs != nil {
		where := filters.Where().
			WithPath([]string{"memoryId"}).
			WithOperator(filters.ContainsAny).
			WithValueText(candidateIDs...)
		req = req.WithWhere(where)
	}

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate graphql: %s", strings.Join(msgs, "; "))
	}

	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	raw, ok := getData[i.class].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]vectorindex.Hit, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["memoryId"].(string)
		var dist float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			dist, _ = add["distance"].(float64)
		}
		hits = append(hits, vectorindex.Hit{ID: id, Distance: float32(dist)})
	}
	return hits, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	resp, err := i.client.GraphQL().Aggregate().
		WithClassName(i.class).
		WithFields(gql.Field{Name: "meta", Fields: []gql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("weaviate aggregate: %s", resp.Errors[0].Message)
	}
	agg, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	arr, ok := agg[i.class].([]interface{})
	if !ok || len(arr) == 0 {
		return 0, nil
	}
	item, ok := arr[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := item["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// HealthPing implements health.HealthPinger: GET /v1/meta must return 200.
func (i *Index) HealthPing(ctx context.Context) error {
	if i == nil || i.baseURL == "" {
		return fmt.Errorf("weaviate baseURL missing")
	}
	url := i.baseURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/meta", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate status %d", resp.StatusCode)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var ce *fault.WeaviateClientError
	if errors.As(err, &ce) {
		return ce.StatusCode == http.StatusUnprocessableEntity ||
			strings.Contains(ce.Error(), "already exists")
	}
	return strings.Contains(err.Error(), "already exists")
}

func isNotFound(err error) bool {
	var ce *fault.WeaviateClientError
	return errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound
}

var _ vectorindex.Index = (*Index)(nil)
