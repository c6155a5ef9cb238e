package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekv/rangekv/admin"
	"github.com/rangekv/rangekv/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewRegionStore(storage.TestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Shutdown() })

	coordinator := admin.NewCoordinator()
	coordinator.RegisterServer(admin.Address{Host: "localhost", Port: 8080})

	ts := httptest.NewServer(New(store, coordinator).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTableEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status := doJSON(t, http.MethodPost, ts.URL+"/tables",
		map[string]interface{}{"name": "orders", "split_keys": []string{"50"}}, nil)
	require.Equal(t, http.StatusCreated, status)

	var cells []map[string]interface{}
	for i := 0; i < 10; i++ {
		row := fmt.Sprintf("%02d", i*10)
		cells = append(cells, map[string]interface{}{
			"row": row, "family": "f1", "qualifier": "q1", "timestamp": 1, "value": "v-" + row,
		})
	}
	status = doJSON(t, http.MethodPost, ts.URL+"/tables/orders/cells", cells, nil)
	require.Equal(t, http.StatusOK, status)

	var got []map[string]interface{}
	status = doJSON(t, http.MethodPost, ts.URL+"/tables/orders/scan",
		map[string]interface{}{"start_row": "20", "stop_row": "60"}, &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got, 4)
	assert.Equal(t, "20", got[0]["row"])
	assert.Equal(t, "50", got[3]["row"])

	got = nil
	status = doJSON(t, http.MethodGet, ts.URL+"/tables/orders/rows/30", nil, &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got, 1)
	assert.Equal(t, "v-30", got[0]["value"])

	var regions []map[string]interface{}
	status = doJSON(t, http.MethodGet, ts.URL+"/tables/orders/regions", nil, &regions)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, regions, 2)
}

func TestScanEndpointValidation(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/tables", map[string]interface{}{"name": "t1"}, nil)

	status := doJSON(t, http.MethodPost, ts.URL+"/tables/t1/scan",
		map[string]interface{}{"start_row": "z", "stop_row": "a"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGroupEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status := doJSON(t, http.MethodPost, ts.URL+"/groups", map[string]string{"name": "analytics"}, nil)
	require.Equal(t, http.StatusCreated, status)

	var groups []map[string]interface{}
	status = doJSON(t, http.MethodGet, ts.URL+"/groups", nil, &groups)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, groups, 2)

	var balance map[string]bool
	status = doJSON(t, http.MethodPost, ts.URL+"/groups/analytics/balance", nil, &balance)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, balance["balance_ran"])

	status = doJSON(t, http.MethodDelete, ts.URL+"/groups/analytics", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodGet, ts.URL+"/groups/analytics", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// The default group is protected.
	status = doJSON(t, http.MethodDelete, ts.URL+"/groups/default", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
