package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret", c.secret)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := New(server.URL, "")
	assert.NoError(t, c.Healthcheck(context.Background()))

	status = http.StatusInternalServerError
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Error(t, New(url, "").Healthcheck(context.Background()))
}

func TestUpload(t *testing.T) {
	received := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UploadRoute, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "id", "name", "vehicleId", "recordedAt", "samples", "maxTime"} {
			received[k] = r.FormValue(k)
		}
		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			content, _ = io.ReadAll(f)
			f.Close()
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "lap.msgpack.zst")
	require.NoError(t, os.WriteFile(file, []byte("path bytes"), 0o644))

	info := core.PathInfo{
		ID:         "lap",
		Name:       "Yard lap",
		VehicleID:  "rig",
		RecordedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Samples:    25,
		MaxTime:    2.4,
	}
	require.NoError(t, New(server.URL, "s3cret").Upload(context.Background(), file, info))

	assert.Equal(t, map[string]string{
		"secret":     "s3cret",
		"filename":   "lap.msgpack.zst",
		"id":         "lap",
		"name":       "Yard lap",
		"vehicleId":  "rig",
		"recordedAt": "2026-05-01T12:00:00Z",
		"samples":    "25",
		"maxTime":    "2.4",
	}, received)
	assert.Equal(t, "path bytes", string(content))
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload(context.Background(), "/nonexistent/lap.json", core.PathInfo{})
	assert.Error(t, err)
}

func TestUpload_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "lap.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	err := New(server.URL, "wrong").Upload(context.Background(), file, core.PathInfo{ID: "lap"})
	assert.ErrorContains(t, err, "403")
}
