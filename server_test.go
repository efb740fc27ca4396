package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldehir/cache-service/cache"
	"github.com/aldehir/cache-service/store/memory"
	"github.com/aldehir/cache-service/types"
)

func newTestServer(t *testing.T, maxSize int, seed ...types.Record) (*Server, *cache.Cache, *memory.Store) {
	t.Helper()
	backing := memory.New(seed...)
	c, err := cache.New(backing, maxSize)
	require.NoError(t, err)
	return NewServer(c, nil), c, backing
}

func serve(s http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Endpoints(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"add", http.MethodPost, "/cache/add", `{"id":1,"name":"test1","salary":1000}`, http.StatusOK, addMsg},
		{"remove", http.MethodDelete, "/cache/remove", `{"id":1}`, http.StatusOK, removeMsg},
		{"remove all", http.MethodDelete, "/cache/removeAll", "", http.StatusOK, removeAllMsg},
		{"clear", http.MethodDelete, "/cache/clear", "", http.StatusOK, clearMsg},
		{"health", http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, 2)
			rec := serve(s, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestServer_AddThenGet(t *testing.T) {
	s, _, _ := newTestServer(t, 2)

	rec := serve(s, http.MethodPost, "/cache/add", `{"id":1,"name":"test1","salary":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/cache/get/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got types.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.Record{ID: 1, Name: "test1", Salary: 1000}, got)
}

func TestServer_GetMissFillsFromStore(t *testing.T) {
	s, c, _ := newTestServer(t, 2, types.Record{ID: 5, Name: "x", Salary: 50})

	rec := serve(s, http.MethodGet, "/cache/get/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{5}, c.Keys())
}

func TestServer_GetNotFound(t *testing.T) {
	s, _, _ := newTestServer(t, 2)

	rec := serve(s, http.MethodGet, "/cache/get/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Status)
	assert.Equal(t, "Resource Not found", errResp.Error)
	assert.Equal(t, "Entry not found for the id - 1", errResp.Message)
	assert.False(t, errResp.Timestamp.IsZero())
}

func TestServer_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"non-numeric id", http.MethodGet, "/cache/get/abc", ""},
		{"malformed add body", http.MethodPost, "/cache/add", `{"id":`},
		{"malformed remove body", http.MethodDelete, "/cache/remove", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, 2)
			rec := serve(s, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, "Bad Request", errResp.Error)
		})
	}
}

func TestServer_RejectsOversizedBody(t *testing.T) {
	s, c, _ := newTestServer(t, 2)

	body := `{"id":1,"name":"` + strings.Repeat("a", maxRecordBytes) + `"}`
	rec := serve(s, http.MethodPost, "/cache/add", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Payload Too Large", errResp.Error)
	assert.Equal(t, 0, c.Len())
}

func TestServer_WrongMethod(t *testing.T) {
	s, _, _ := newTestServer(t, 2)
	rec := serve(s, http.MethodGet, "/cache/add", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingCache struct {
	CacheService
	err error
}

func (f failingCache) Add(context.Context, types.Record) error          { return f.err }
func (f failingCache) Get(context.Context, int64) (types.Record, error) { return types.Record{}, f.err }
func (f failingCache) Remove(context.Context, types.Record) error       { return f.err }
func (f failingCache) RemoveAll(context.Context) error                  { return f.err }

func TestServer_InternalErrorsAreGeneric(t *testing.T) {
	storeErr := &cache.StoreError{Op: "save", Err: errors.New("pq: password authentication failed")}
	s := NewServer(failingCache{err: storeErr}, nil)

	requests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/cache/add", `{"id":1}`},
		{http.MethodGet, "/cache/get/1", ""},
		{http.MethodDelete, "/cache/remove", `{"id":1}`},
		{http.MethodDelete, "/cache/removeAll", ""},
	}

	for _, r := range requests {
		t.Run(r.method+" "+r.target, func(t *testing.T) {
			rec := serve(s, r.method, r.target, r.body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "password")

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, "An Error Occured", errResp.Error)
		})
	}
}

func TestServer_Stats(t *testing.T) {
	s, _, _ := newTestServer(t, 2)

	serve(s, http.MethodPost, "/cache/add", `{"id":1}`)
	serve(s, http.MethodPost, "/cache/add", `{"id":2}`)
	serve(s, http.MethodPost, "/cache/add", `{"id":3}`)
	serve(s, http.MethodGet, "/cache/get/2", "")

	rec := serve(s, http.MethodGet, "/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.MaxSize)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, []int64{3, 2}, stats.Keys)
	assert.InDelta(t, 100.0, stats.HitRate, 0.001)
}

func TestServer_EvictionReachesStore(t *testing.T) {
	s, _, backing := newTestServer(t, 1)

	serve(s, http.MethodPost, "/cache/add", `{"id":1,"name":"a"}`)
	serve(s, http.MethodPost, "/cache/add", `{"id":2,"name":"b"}`)

	got, err := backing.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	rec := serve(s, http.MethodDelete, "/cache/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, backing.Len(), "clear leaves the store alone")

	rec = serve(s, http.MethodDelete, "/cache/removeAll", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, backing.Len())
}

func TestServer_StatsSizeMatchesKeysUnderLoad(t *testing.T) {
	s, _, _ := newTestServer(t, 5)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			serve(s, http.MethodPost, "/cache/add", `{"id":`+strconv.Itoa(i%20)+`}`)
			if i%7 == 0 {
				serve(s, http.MethodDelete, "/cache/clear", "")
			}
		}
	}()

	for i := 0; i < 200; i++ {
		rec := serve(s, http.MethodGet, "/cache/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var stats StatsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		require.Equal(t, stats.Size, len(stats.Keys), "iteration %d", i)
	}

	close(stop)
	wg.Wait()
}
