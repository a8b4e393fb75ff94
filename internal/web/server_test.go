package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"metazip/internal/codec"
	"metazip/internal/config"
	"metazip/internal/engine"
	"metazip/internal/extractor"
	"metazip/internal/fixture"
	"metazip/internal/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, logger.Discard(), WithVersion("test"))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)
	rr := do(t, s, http.MethodGet, "/api/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	env := decode(t, rr)
	var data struct {
		Version string `json:"version"`
		Running bool   `json:"running"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if !env.Success || data.Version != "test" || data.Running {
		t.Errorf("status = %+v %+v", env, data)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodPost, "/api/metadata", fixture.JPEG(t, fixture.SampleEXIF(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var res struct {
		Items  []map[string]string `json:"items"`
		HasGPS bool                `json:"hasGPS"`
	}
	if err := json.Unmarshal(decode(t, rr).Data, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Items) == 0 || !res.HasGPS {
		t.Errorf("metadata = %+v", res)
	}

	rr = do(t, s, http.MethodPost, "/api/metadata", []byte("not an image"))
	if rr.Code != http.StatusOK {
		t.Fatalf("garbage status = %d", rr.Code)
	}
	if err := json.Unmarshal(decode(t, rr).Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Items == nil || len(res.Items) != 0 || res.HasGPS {
		t.Errorf("garbage metadata = %+v", res)
	}
}

func TestStrip(t *testing.T) {
	s := newTestServer(t, nil)
	orig := fixture.JPEG(t, fixture.SampleEXIF(), fixture.ICCProfile)

	rr := do(t, s, http.MethodPost, "/api/strip", orig)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rr.Header().Get(HeaderOriginalSize); got != itoa(len(orig)) {
		t.Errorf("%s = %q", HeaderOriginalSize, got)
	}
	if got := rr.Header().Get(HeaderCleanedSize); got != itoa(rr.Body.Len()) {
		t.Errorf("%s = %q, body %d", HeaderCleanedSize, got, rr.Body.Len())
	}
	if rr.Body.Len() >= len(orig) || rr.Header().Get(HeaderSavingsPercentage) == "0.0" {
		t.Errorf("nothing saved: %d -> %d", len(orig), rr.Body.Len())
	}

	rr = do(t, s, http.MethodPost, "/api/strip", []byte("GIF89a plus some bytes"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("garbage status = %d", rr.Code)
	}
	if env := decode(t, rr); env.Success || env.Error != "format not recognized" {
		t.Errorf("garbage response = %+v", env)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestProcess(t *testing.T) {
	s := newTestServer(t, nil)
	rr := do(t, s, http.MethodPost, "/api/process", fixture.PNG(t, fixture.SampleEXIF(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var rep struct {
		Format   string `json:"format"`
		Strategy string `json:"strategy"`
		Data     []byte `json:"data"`
		Cleaned  struct {
			Items []interface{} `json:"items"`
		} `json:"cleaned"`
		Dimensions *struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"dimensions"`
	}
	if err := json.Unmarshal(decode(t, rr).Data, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Format != "PNG" || rep.Strategy != "segments" || len(rep.Data) == 0 || len(rep.Cleaned.Items) != 0 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Dimensions == nil || rep.Dimensions.Width != 16 || rep.Dimensions.Height != 8 {
		t.Errorf("dimensions = %+v", rep.Dimensions)
	}
}

func TestSavings(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodGet, "/api/savings?original=1000&cleaned=900", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := string(decode(t, rr).Data); got != `{"bytes":100,"percentage":10}` {
		t.Errorf("savings = %s", got)
	}

	for _, q := range []string{"original=-1&cleaned=0", "original=1&cleaned=4294967296", "cleaned=1"} {
		if rr := do(t, s, http.MethodGet, "/api/savings?"+q, nil); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rr.Code)
		}
	}
}

func TestDimensions(t *testing.T) {
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodPost, "/api/dimensions", fixture.WebP(nil, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if got := string(decode(t, rr).Data); got != `{"width":1,"height":1}` {
		t.Errorf("dimensions = %s", got)
	}

	rr = do(t, s, http.MethodPost, "/api/dimensions", []byte("nope, not an image"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("garbage status = %d", rr.Code)
	}
}

type fixedExtractor struct{ res extractor.Result }

func (f fixedExtractor) Extract([]byte) extractor.Result { return f.res }

func TestMetadataUsesServerEngine(t *testing.T) {
	want := extractor.Result{Items: []extractor.Item{{Key: "Make", Value: "Custom"}}, HasCamera: true}
	s := NewServer(config.DefaultConfig(), logger.Discard(),
		WithEngine(engine.New(engine.WithExtractor(fixedExtractor{res: want}))))

	rr := do(t, s, http.MethodPost, "/api/metadata", fixture.PNG(t, nil, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(string(decode(t, rr).Data), `"Custom"`) {
		t.Errorf("metadata = %s", decode(t, rr).Data)
	}
}

func TestDimensionsDecodeLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		want  int
	}{
		{"within limit", 512, http.StatusOK},
		{"over limit", 16, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(cfg *config.Config) { cfg.Limits.MaxDecodeBytes = tt.limit })
			rr := do(t, s, http.MethodPost, "/api/dimensions", fixture.PNG(t, nil, nil))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body)
			}
			if tt.want != http.StatusOK && !strings.Contains(decode(t, rr).Error, codec.ErrImageTooLarge.Error()) {
				t.Errorf("error = %q", decode(t, rr).Error)
			}
		})
	}
}

func TestUploadLimits(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Limits.MaxFileSize = 64 })
	big := fixture.JPEG(t, fixture.SampleEXIF(), nil)

	for _, path := range []string{"/api/metadata", "/api/strip", "/api/process", "/api/dimensions"} {
		if rr := do(t, s, http.MethodPost, path, big); rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("%s oversize status = %d", path, rr.Code)
		}
		if rr := do(t, s, http.MethodPost, path, nil); rr.Code != http.StatusBadRequest {
			t.Errorf("%s empty status = %d", path, rr.Code)
		}
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, data := range files {
		fw, err := mw.CreateFormFile(batchField, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func postBatch(t *testing.T, s *Server, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestBatchSingleFile(t *testing.T) {
	s := newTestServer(t, nil)
	rr := postBatch(t, s, map[string][]byte{"holiday.png": fixture.PNG(t, fixture.SampleEXIF(), nil)})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "holiday_clean.png") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rr.Header().Get(HeaderFilesCleaned) != "1" || rr.Header().Get(HeaderFilesFailed) != "0" {
		t.Errorf("count headers = %v", rr.Header())
	}
}

func TestBatchZip(t *testing.T) {
	s := newTestServer(t, nil)
	rr := postBatch(t, s, map[string][]byte{
		"a.jpg":    fixture.JPEG(t, fixture.SampleEXIF(), nil),
		"b.webp":   fixture.WebP(fixture.SampleEXIF(), nil),
		"c.txt":    []byte("text file"),
		"d_no_ext": fixture.PNG(t, nil, nil),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if rr.Header().Get(HeaderFilesCleaned) != "3" || rr.Header().Get(HeaderFilesFailed) != "1" {
		t.Errorf("count headers = %v", rr.Header())
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"a_clean.jpg", "b_clean.webp", "d_no_ext_clean.png"} {
		if !names[want] {
			t.Errorf("archive lacks %s: %v", want, names)
		}
	}
}

func TestBatchErrors(t *testing.T) {
	s := newTestServer(t, nil)
	if rr := postBatch(t, s, map[string][]byte{"x.jpg": []byte("broken")}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("all failed status = %d", rr.Code)
	}
	if rr := postBatch(t, s, map[string][]byte{}); rr.Code != http.StatusBadRequest {
		t.Errorf("no files status = %d", rr.Code)
	}

	small := newTestServer(t, func(cfg *config.Config) { cfg.Limits.MaxFileSize = 32 })
	rr := postBatch(t, small, map[string][]byte{"big.jpg": fixture.JPEG(t, fixture.SampleEXIF(), nil)})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversize status = %d", rr.Code)
	}
}

func waitIdle(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s.operationMutex.RLock()
		running := s.isRunning
		s.operationMutex.RUnlock()
		if !running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("clean run did not finish")
}

func TestCleanRun(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.jpg"), fixture.JPEG(t, fixture.SampleEXIF(), nil), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, nil)

	body, _ := json.Marshal(CleanRequest{Paths: []string{src}})
	rr := do(t, s, http.MethodPost, "/api/clean", body)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	waitIdle(t, s)

	if _, err := os.Stat(filepath.Join(src, "a_clean.jpg")); err != nil {
		t.Errorf("output missing: %v", err)
	}

	rr = do(t, s, http.MethodGet, "/api/statistics", nil)
	var data struct {
		Statistics struct {
			FilesCleaned int64 `json:"filesCleaned"`
		} `json:"statistics"`
		Batch struct {
			Results []struct {
				Action string `json:"action"`
			} `json:"results"`
		} `json:"batch"`
	}
	if err := json.Unmarshal(decode(t, rr).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Statistics.FilesCleaned != 1 || len(data.Batch.Results) != 1 || data.Batch.Results[0].Action != "cleaned" {
		t.Errorf("statistics = %+v", data)
	}
}

func TestCleanRequestValidation(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"paths": [`},
		{"unknown field", `{"paths": ["."], "extra": 1}`},
		{"no paths", `{"paths": []}`},
		{"missing path", `{"paths": ["/definitely/not/here"]}`},
		{"two values", `{"paths": ["."]} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, s, http.MethodPost, "/api/clean", []byte(tt.body)); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d: %s", rr.Code, rr.Body)
			}
		})
	}
}

func TestCleanConflict(t *testing.T) {
	s := newTestServer(t, nil)
	s.operationMutex.Lock()
	s.isRunning = true
	s.operationMutex.Unlock()

	body, _ := json.Marshal(CleanRequest{Paths: []string{t.TempDir()}})
	if rr := do(t, s, http.MethodPost, "/api/clean", body); rr.Code != http.StatusConflict {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestListDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, nil)

	rr := do(t, s, http.MethodGet, "/api/directories?path="+dir, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var entries []DirectoryInfo
	if err := json.Unmarshal(decode(t, rr).Data, &entries); err != nil {
		t.Fatal(err)
	}
	images := map[string]bool{}
	for _, e := range entries {
		images[e.Name] = e.IsImage
	}
	if len(entries) != 2 || !images["a.jpg"] || images["b.txt"] {
		t.Errorf("entries = %+v", entries)
	}

	if rr := do(t, s, http.MethodGet, "/api/directories?path=../etc", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d", rr.Code)
	}
}

func TestWebSocketBatchProgress(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	body, ct := multipartBody(t, map[string][]byte{"a.jpg": fixture.JPEG(t, fixture.SampleEXIF(), nil)})
	resp, err := http.Post(ts.URL+"/api/batch", ct, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	var types []string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(types) < 2 {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		types = append(types, msg.Type)
	}
	if types[0] != "batch_progress" || types[1] != "batch_completed" {
		t.Errorf("messages = %v", types)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"https://meta.zip"}
	})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://meta.zip", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestServer(t, nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Start(0); !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Start() after Stop = %v, want ErrServerClosed", err)
	}
}
