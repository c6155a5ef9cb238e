// Package server exposes the region store, the scan client and the group
// admin over a small JSON HTTP API. It exists for the standalone daemon and
// for poking at a store by hand; the programmatic surface is the client
// package.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rangekv/rangekv/admin"
	"github.com/rangekv/rangekv/client"
	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/region"
	"github.com/rangekv/rangekv/rpc"
	"github.com/rangekv/rangekv/types"
)

// Server routes HTTP requests onto a region store and its group coordinator.
type Server struct {
	store       Store
	coordinator *admin.Coordinator
	adminClient *admin.Client
	router      chi.Router
}

// Store is the storage surface the HTTP API needs. *storage.RegionStore
// satisfies it.
type Store interface {
	rpc.Fetcher
	region.Locator
	CreateTable(name string, splitKeys [][]byte) error
	Put(ctx context.Context, table string, cells []*types.Cell) error
	Regions(table string) []region.Descriptor
}

// New builds the server and its routes.
func New(store Store, coordinator *admin.Coordinator) *Server {
	s := &Server{
		store:       store,
		coordinator: coordinator,
		adminClient: admin.NewClient(coordinator),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/tables", s.handleCreateTable)
	r.Post("/tables/{table}/cells", s.handlePut)
	r.Get("/tables/{table}/rows/{row}", s.handleGet)
	r.Post("/tables/{table}/scan", s.handleScan)
	r.Get("/tables/{table}/regions", s.handleRegions)

	r.Get("/groups", s.handleListGroups)
	r.Post("/groups", s.handleAddGroup)
	r.Get("/groups/{group}", s.handleGetGroup)
	r.Delete("/groups/{group}", s.handleRemoveGroup)
	r.Post("/groups/{group}/balance", s.handleBalanceGroup)
	r.Post("/groups/{group}/servers", s.handleMoveServers)
	r.Post("/groups/{group}/tables", s.handleMoveTables)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type cellJSON struct {
	Row       string `json:"row"`
	Family    string `json:"family"`
	Qualifier string `json:"qualifier"`
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

func toCellJSON(c *types.Cell) cellJSON {
	return cellJSON{
		Row:       string(c.Row),
		Family:    string(c.Family),
		Qualifier: string(c.Qualifier),
		Timestamp: c.Timestamp,
		Value:     string(c.Value),
	}
}

func (j cellJSON) toCell() *types.Cell {
	return &types.Cell{
		Row:       []byte(j.Row),
		Family:    []byte(j.Family),
		Qualifier: []byte(j.Qualifier),
		Timestamp: j.Timestamp,
		Value:     []byte(j.Value),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger.Warn("request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string   `json:"name"`
		SplitKeys []string `json:"split_keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	splits := make([][]byte, 0, len(body.SplitKeys))
	for _, k := range body.SplitKeys {
		splits = append(splits, []byte(k))
	}
	if err := s.store.CreateTable(body.Name, splits); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.coordinator.RegisterTable(body.Name)
	writeJSON(w, http.StatusCreated, map[string]string{"name": body.Name})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var body []cellJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cells := make([]*types.Cell, 0, len(body))
	for _, j := range body {
		cells = append(cells, j.toCell())
	}
	if err := s.store.Put(r.Context(), table, cells); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": len(cells)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	row := chi.URLParam(r, "row")

	get := client.NewGet([]byte(row))
	if fam := r.URL.Query().Get("family"); fam != "" {
		get.AddFamily([]byte(fam))
	}

	t := client.NewTable(table, s.store, s.store)
	result, err := t.Get(r.Context(), get)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]cellJSON, 0, len(result.Cells))
	for _, c := range result.Cells {
		out = append(out, toCellJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type scanRequestJSON struct {
	StartRow    string   `json:"start_row"`
	StopRow     string   `json:"stop_row"`
	Reversed    bool     `json:"reversed"`
	Small       bool     `json:"small"`
	Families    []string `json:"families"`
	MaxVersions int      `json:"max_versions"`
	Caching     int      `json:"caching"`
	Limit       int      `json:"limit"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var body scanRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	scan := client.NewScan()
	if body.StartRow != "" {
		scan.WithStartRow([]byte(body.StartRow), true)
	}
	if body.StopRow != "" {
		scan.WithStopRow([]byte(body.StopRow), false)
	}
	scan.SetReversed(body.Reversed)
	scan.SetSmall(body.Small)
	for _, fam := range body.Families {
		scan.AddFamily([]byte(fam))
	}
	if body.MaxVersions > 0 {
		scan.SetMaxVersions(body.MaxVersions)
	}
	if body.Caching > 0 {
		scan.SetCaching(body.Caching)
	}

	t := client.NewTable(table, s.store, s.store)
	scanner, err := t.GetScanner(r.Context(), scan)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer scanner.Close()

	var out []cellJSON
	rows := 0
	for {
		if body.Limit > 0 && rows >= body.Limit {
			break
		}
		result, err := scanner.Next()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if result == nil {
			break
		}
		if !result.Partial {
			rows++
		}
		for _, c := range result.Cells {
			out = append(out, toCellJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	regions := s.store.Regions(table)
	type regionJSON struct {
		ID         string `json:"id"`
		StartKey   string `json:"start_key"`
		EndKey     string `json:"end_key"`
		Generation uint64 `json:"generation"`
	}
	out := make([]regionJSON, 0, len(regions))
	for _, d := range regions {
		out = append(out, regionJSON{
			ID:         d.ID.String(),
			StartKey:   string(d.StartKey),
			EndKey:     string(d.EndKey),
			Generation: d.Generation,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.adminClient.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.adminClient.AddGroup(r.Context(), body.Name); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": body.Name})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.adminClient.GetGroup(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if group == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.adminClient.RemoveGroup(r.Context(), chi.URLParam(r, "group")); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleBalanceGroup(w http.ResponseWriter, r *http.Request) {
	ran, err := s.adminClient.BalanceGroup(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"balance_ran": ran})
}

func (s *Server) handleMoveServers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Servers []admin.Address `json:"servers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.adminClient.MoveServers(r.Context(), body.Servers, chi.URLParam(r, "group")); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleMoveTables(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tables []string `json:"tables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.adminClient.MoveTables(r.Context(), body.Tables, chi.URLParam(r, "group")); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
