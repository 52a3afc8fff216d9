// internal/agents/directory.go
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/models"
)

var (
	// ErrQueryFailed wraps transport and search failures against the
	// agent index. Retryable.
	ErrQueryFailed = errors.New("agent pool query failed")

	// ErrIndexNotFound reports a missing agent index. Not retryable,
	// the index has to be provisioned first.
	ErrIndexNotFound = errors.New("agent index not found")
)

const (
	defaultPoolSize = 50
	maxPoolSize     = 500
)

// PoolQuery narrows the candidate pool before scoring. The routing
// flow filters on region and activity only: specialization and
// capacity are ranking signals, so a mismatched specialist stays in
// the pool and loses on score. InsuranceType narrows further for
// previews and one-off audits.
type PoolQuery struct {
	State         string
	Country       string
	InsuranceType string
	OnlyActive    bool
	Size          int
}

// Directory reads candidate agents from the Elasticsearch agent index.
type Directory struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewDirectory(es *elasticsearch.Client, index string, log logger.Logger) *Directory {
	if index == "" {
		index = "agents"
	}
	return &Directory{
		es:    es,
		index: index,
		logger: log.WithFields(map[string]interface{}{
			"component": "agent_directory",
			"index":     index,
		}),
	}
}

// FetchPool runs the pool query and returns the matching agents. An
// empty pool is a valid result, not an error.
func (d *Directory) FetchPool(ctx context.Context, q PoolQuery) ([]models.Agent, error) {
	size := q.Size
	if size <= 0 {
		size = defaultPoolSize
	}
	if size > maxPoolSize {
		size = maxPoolSize
	}

	body, err := json.Marshal(buildPoolQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal query: %v", ErrQueryFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{d.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, d.es)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, d.index)
		}
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrQueryFailed, err)
	}

	agents := make([]models.Agent, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		agents = append(agents, hit.Source)
	}

	d.logger.Debug("agent pool fetched", map[string]interface{}{
		"totalHits": sr.Hits.Total.Value,
		"returned":  len(agents),
		"state":     q.State,
		"country":   q.Country,
	})

	return agents, nil
}

// buildPoolQuery assembles the bool query for the pool lookup. All
// clauses are filters, no scoring happens in Elasticsearch.
func buildPoolQuery(q PoolQuery) map[string]interface{} {
	filterClauses := []interface{}{}

	if q.OnlyActive {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"isActive": true},
		})
	}
	if q.State != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"location.state": q.State},
		})
	} else if q.Country != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"location.country": q.Country},
		})
	}
	if q.InsuranceType != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"specializations": q.InsuranceType},
		})
	}

	if len(filterClauses) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filterClauses,
			},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.Agent `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
