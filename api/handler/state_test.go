package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/shardcoord/api/model"
	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/routing"
)

func testState(t *testing.T) *clusterstate.Store {
	t.Helper()

	b := clusterstate.NewBuilder(clusterstate.Empty("uuid")).
		PutIndex(clusterstate.IndexMetadata{Name: "logs", NumberOfShards: 2, NumberOfReplicas: 1}).
		PutIndex(clusterstate.IndexMetadata{Name: "archive", NumberOfShards: 1, State: clusterstate.IndexClosed})

	require.NoError(t, clusterstate.AllocateIndex(b, "logs", []string{"node1", "node2"}))

	return clusterstate.NewStore(b.Build())
}

func TestStateAPI_getState(t *testing.T) {
	mux := chi.NewMux()
	NewStateHandler(testState(t), routing.NewOperationRouting("node1")).Register(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/state", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp model.GetStateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.Equal(t, uint64(1), resp.Version)
	assert.Equal(t, "uuid", resp.ClusterUUID)
	require.Len(t, resp.Indices, 2)

	archive, logs := resp.Indices[0], resp.Indices[1]
	assert.Equal(t, "archive", archive.Name)
	assert.Equal(t, "close", archive.State)
	assert.Equal(t, "logs", logs.Name)
	assert.Equal(t, "open", logs.State)
	require.Len(t, logs.Routing, 2)

	for i, shard := range logs.Routing {
		assert.Equal(t, i, shard.Shard)
		require.Len(t, shard.Copies, 2)
		assert.True(t, shard.Copies[0].Primary)
		assert.Equal(t, "started", shard.Copies[0].State)
	}
}

func TestStateAPI_searchShards(t *testing.T) {
	tests := map[string]struct {
		query      string
		wantStatus int
		check      func(t *testing.T, resp model.SearchShardsResponse)
	}{
		"SingleIndex": {
			query:      "index=logs",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp model.SearchShardsResponse) {
				assert.Equal(t, 2, resp.Size)
				assert.Equal(t, 4, resp.TotalSizeWithOneForEmpty)
				require.Len(t, resp.Groups, 2)
				assert.Equal(t, 0, resp.Groups[0].Shard)
				assert.Equal(t, 1, resp.Groups[1].Shard)

				for _, g := range resp.Groups {
					require.Len(t, g.Targets, 2)
					assert.Equal(t, "logs", g.Targets[0].FullName)
				}
			},
		},
		"RemoteCluster": {
			query:      "index=logs&cluster_alias=remote&preference=_primary",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp model.SearchShardsResponse) {
				require.Len(t, resp.Groups, 2)

				for _, g := range resp.Groups {
					require.Len(t, g.Targets, 1)
					assert.Equal(t, "remote", g.Targets[0].ClusterAlias)
					assert.Equal(t, "remote:logs", g.Targets[0].FullName)
				}
			},
		},
		"UnknownIndex": {
			query:      "index=logs,missing",
			wantStatus: http.StatusNotFound,
		},
		"ClosedIndex": {
			query:      "index=archive",
			wantStatus: http.StatusBadRequest,
		},
		"NoIndex": {
			query:      "preference=abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mux := chi.NewMux()
			NewStateHandler(testState(t), routing.NewOperationRouting("node1")).Register(mux)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest("GET", "/search_shards?"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rr.Code)

			if tt.check == nil {
				var resp model.ErrorResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.NotEmpty(t, resp.Error)

				return
			}

			var resp model.SearchShardsResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			tt.check(t, resp)
		})
	}
}
