package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/tat"
)

type storedDoc struct {
	version int
	source  json.RawMessage
}

// fakeCluster answers the handful of endpoints the client uses
type fakeCluster struct {
	mu      sync.Mutex
	created int
	mapping map[string]interface{}
	docs    map[string]storedDoc
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		fmt.Fprint(w, `{"cluster_name":"test","version":{"number":"8.11.1"}}`)

	case len(parts) == 1 && r.Method == http.MethodHead:
		if f.mapping == nil {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 1 && r.Method == http.MethodPut:
		if f.mapping != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception"},"status":400}`)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.mapping)
		f.created++
		fmt.Fprint(w, `{"acknowledged":true}`)

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		q := r.URL.Query()
		version, err := strconv.Atoi(q.Get("version"))
		if err != nil || q.Get("version_type") != "external_gte" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"illegal_argument_exception"},"status":400}`)
			return
		}
		if current, ok := f.docs[parts[2]]; ok && version < current.version {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":{"type":"version_conflict_engine_exception"},"status":409}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.docs[parts[2]] = storedDoc{version: version, source: body}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)

	case len(parts) == 2 && parts[1] == "_search":
		ids := make([]string, 0, len(f.docs))
		for id := range f.docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		hits := make([]map[string]json.RawMessage, 0, len(ids))
		for _, id := range ids {
			hits = append(hits, map[string]json.RawMessage{"_source": f.docs[id].source})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{"hits": hits},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":404}`)
	}
}

func newTestClient(t *testing.T) (Client, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{docs: make(map[string]storedDoc)}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), config.ElasticsearchConfig{
		URLs:  []string{server.URL},
		Index: "yard-journeys",
	})
	require.NoError(t, err)
	return client, cluster
}

func TestNewClientCreatesIndexOnce(t *testing.T) {
	client, cluster := newTestClient(t)

	require.NoError(t, client.EnsureIndex(context.Background()))
	assert.Equal(t, 1, cluster.created)

	props := cluster.mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, "keyword", props["severity"].(map[string]interface{})["type"])
	assert.Equal(t, "float", props["percent_over"].(map[string]interface{})["type"])
}

func TestIndexDocumentRejectsOlderVersions(t *testing.T) {
	client, cluster := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.IndexDocument(ctx, "j-1", 5, []byte(`{"journey_id":"j-1","version":5}`)))

	err := client.IndexDocument(ctx, "j-1", 4, []byte(`{"journey_id":"j-1","version":4}`))
	assert.True(t, errors.Is(err, ErrStaleDocument))

	// reindexing the same version is allowed
	require.NoError(t, client.IndexDocument(ctx, "j-1", 5, []byte(`{"journey_id":"j-1","version":5}`)))
	assert.Equal(t, 5, cluster.docs["j-1"].version)
}

func TestProjectorKeepsNewestDocument(t *testing.T) {
	client, _ := newTestClient(t)
	projector := NewTATProjector(client)
	ctx := context.Background()

	require.NoError(t, projector.Index(ctx, TATDocument{JourneyID: "j-1", Version: 5, Status: "exited", Severity: tat.SeverityCritical}))
	require.NoError(t, projector.Index(ctx, TATDocument{JourneyID: "j-1", Version: 4, Status: "inside", Severity: tat.SeverityCritical}))

	docs, err := projector.SearchBySeverity(ctx, tat.SeverityWarning, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 5, docs[0].Version)
	assert.EqualValues(t, "exited", docs[0].Status)
}
