package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
	"github.com/moyoez/dropzone-go/upload"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	root    string
	handler http.Handler
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	store, err := upload.NewFileSessionStore(filepath.Join(root, upload.MetadataDirName))
	require.NoError(t, err)
	batches := upload.NewBatchTracker(30 * time.Minute)
	engine, err := upload.NewEngine(upload.EngineConfig{Root: root, MaxFileSize: 1024}, store, batches, nil)
	require.NoError(t, err)

	tool.CurrentConfig = tool.DefaultConfig()
	tool.CurrentConfig.UploadDir = root
	tool.CurrentConfig.MaxFileSizeMB = 1

	return &testServer{root: engine.Root(), handler: NewServer(opts, engine, batches).Handler()}
}

func (ts *testServer) do(t *testing.T, method, target string, body []byte, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:40000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	var resp map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "image/png" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (ts *testServer) initUpload(t *testing.T, filename string, size int64) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, err := json.Marshal(types.InitUploadRequest{Filename: filename, FileSize: &size})
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, "/api/upload/init", body, map[string]string{"Content-Type": "application/json"})
}

func TestUploadFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, Options{})
	payload := []byte("0123456789")

	w, resp := ts.initUpload(t, "docs/report.pdf", 10)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "docs/report.pdf", resp["path"])
	require.Equal(t, false, resp["completed"])
	id := resp["uploadId"].(string)
	require.NotEmpty(t, id)

	w, resp = ts.do(t, http.MethodPost, "/api/upload/chunk/"+id, payload[:6], nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(6), resp["bytesReceived"])
	require.Equal(t, float64(60), resp["progress"])

	w, resp = ts.do(t, http.MethodPost, "/api/upload/chunk/"+id, payload[6:], nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(10), resp["bytesReceived"])
	require.Equal(t, float64(100), resp["progress"])
	require.Equal(t, true, resp["completed"])

	data, err := os.ReadFile(filepath.Join(ts.root, "docs", "report.pdf"))
	require.NoError(t, err)
	require.Equal(t, payload, data)

	w, resp = ts.do(t, http.MethodPost, "/api/upload/chunk/"+id, payload[6:], nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "upload_not_found", resp["code"])

	w, resp = ts.do(t, http.MethodPost, "/api/upload/cancel/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["cancelled"])
}

func TestInitRejections(t *testing.T) {
	ts := newTestServer(t, Options{})

	w, resp := ts.initUpload(t, "big.bin", 4096)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, "file_too_large", resp["code"])
	require.Equal(t, float64(1024), resp["limit"])

	w, resp = ts.do(t, http.MethodPost, "/api/upload/init", []byte(`{"filename":"a.txt"}`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_size", resp["code"])

	for _, body := range []string{`{"filename":"a.txt","fileSize":"ten"}`, `{"filename":"a.txt","fileSize":1.5}`} {
		w, resp = ts.do(t, http.MethodPost, "/api/upload/init", []byte(body), nil)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		require.Equal(t, "invalid_size", resp["code"], body)
	}

	w, resp = ts.do(t, http.MethodPost, "/api/upload/init", []byte(`{"fileSize":3}`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_path", resp["code"])

	w, _ = ts.do(t, http.MethodPost, "/api/upload/init", []byte(`not json`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = ts.do(t, http.MethodPost, "/api/upload/init", []byte(`{"filename":"a.txt","fileSize":3}`),
		map[string]string{"X-Batch-ID": "not-a-batch"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_batch_id", resp["code"])

	entries, err := os.ReadDir(ts.root)
	require.NoError(t, err)
	for _, e := range entries {
		require.Equal(t, upload.MetadataDirName, e.Name(), "rejected inits must not touch the disk")
	}
}

func TestBatchHeaderSharesFolder(t *testing.T) {
	ts := newTestServer(t, Options{})
	require.NoError(t, os.Mkdir(filepath.Join(ts.root, "album"), 0o755))
	header := map[string]string{"X-Batch-ID": "1700000000000-abc123xyz"}

	_, first := ts.do(t, http.MethodPost, "/api/upload/init", []byte(`{"filename":"album/a.jpg","fileSize":1}`), header)
	_, second := ts.do(t, http.MethodPost, "/api/upload/init", []byte(`{"filename":"album/b.jpg","fileSize":1}`), header)
	require.Equal(t, "album (1)/a.jpg", first["path"])
	require.Equal(t, "album (1)/b.jpg", second["path"])
	require.Equal(t, "1700000000000-abc123xyz", second["batchId"])
}

func TestChunkTooLarge(t *testing.T) {
	ts := newTestServer(t, Options{MaxChunkBytes: 4})
	_, resp := ts.initUpload(t, "a.bin", 10)
	id := resp["uploadId"].(string)

	w, resp := ts.do(t, http.MethodPost, "/api/upload/chunk/"+id, []byte("012345"), nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, "chunk_too_large", resp["code"])

	w, resp = ts.do(t, http.MethodPost, "/api/upload/chunk/"+id, []byte("0123"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(4), resp["bytesReceived"])
}

func TestPinRequired(t *testing.T) {
	ts := newTestServer(t, Options{Pin: "4321"})
	body := []byte(`{"filename":"a.txt","fileSize":1}`)

	w, _ := ts.do(t, http.MethodPost, "/api/upload/init", body, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/upload/init", body, map[string]string{"X-Pin": "4321"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/upload/init", body, map[string]string{"Cookie": "DROPZONE_PIN=4321"})
	require.Equal(t, http.StatusOK, w.Code)

	for range 5 {
		w, _ = ts.do(t, http.MethodPost, "/api/upload/init", body, map[string]string{"X-Pin": "0000"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	// locked out even with the right PIN
	w, _ = ts.do(t, http.MethodPost, "/api/upload/init", body, map[string]string{"X-Pin": "4321"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestInitRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{InitPerMinute: 1, InitBurst: 2})
	body := []byte(`{"filename":"a.txt","fileSize":0}`)
	for range 2 {
		w, _ := ts.do(t, http.MethodPost, "/api/upload/init", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := ts.do(t, http.MethodPost, "/api/upload/init", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// chunks are not throttled
	w, _ = ts.do(t, http.MethodPost, "/api/upload/chunk/unknown", []byte("x"), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelfAPIIsLocalOnly(t *testing.T) {
	ts := newTestServer(t, Options{})
	w, _ := ts.do(t, http.MethodGet, "/api/self/v1/status", nil, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	ts.initUpload(t, "pending.bin", 5)

	req := httptest.NewRequest(http.MethodGet, "/api/self/v1/status", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var status types.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Running)
	require.Equal(t, 1, status.ActiveUploads)
	require.Equal(t, 1, status.ActiveBatches)

	req = httptest.NewRequest(http.MethodGet, "/api/self/v1/qrcode?data=http://example.test/", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}
