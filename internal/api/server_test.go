package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/search"
	"github.com/samcharles93/glint/internal/tokenizer"
)

type testEncoder struct {
	err error
}

func (e testEncoder) EncodeText(_ context.Context, ids []int) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if ids[1] == 1 {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (e testEncoder) EncodeImage(_ context.Context, pixels []float32) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{pixels[0], 1 - pixels[0]}, nil
}

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	v, err := tokenizer.NewVocabulary(map[string]int{
		"a</w>":           0,
		"b</w>":           1,
		"ab</w>":          2,
		"<|startoftext|>": 10,
		"<|endoftext|>":   11,
	}, []string{"a b</w>"})
	if err != nil {
		t.Fatalf("vocabulary: %v", err)
	}
	return tokenizer.New(v)
}

func writeIndex(t *testing.T, path string) *embedstore.Index {
	t.Helper()
	idx := embedstore.New(3)
	for _, r := range []struct {
		id  string
		vec []float32
	}{
		{"img0", []float32{1, 0}},
		{"img1", []float32{0, 1}},
		{"img2", []float32{0.7, 0.7}},
	} {
		if err := idx.Add(r.id, r.vec); err != nil {
			t.Fatal(err)
		}
	}
	if err := embedstore.WriteFile(path, idx); err != nil {
		t.Fatal(err)
	}
	return idx
}

func newTestEcho(t *testing.T, enc testEncoder) (*echo.Echo, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.bin")
	writeIndex(t, path)

	tok := testTokenizer(t)
	service := search.NewService(search.Config{Tokenizer: tok, Text: enc, Image: enc, ImageSize: 4})
	if err := service.LoadIndex(path); err != nil {
		t.Fatalf("load index: %v", err)
	}
	server := NewServer(ServerConfig{Service: service, Tokenizer: tok, IndexPath: path, TopK: 2})
	e := echo.New()
	server.Register(e)
	return e, path
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func resultIDs(resp SearchResponse) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.ID
	}
	return ids
}

func TestSearchText(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	rec := doJSON(t, e, http.MethodPost, "/v1/search", `{"query":"b"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[SearchResponse](t, rec)
	if !strings.HasPrefix(resp.ID, "search_") || resp.Object != "search.result" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if got := strings.Join(resultIDs(resp), ","); got != "img0,img2" {
		t.Fatalf("results = %s, want default top_k of 2", got)
	}
	if resp.Dropped || resp.IndexSize != 3 {
		t.Fatalf("unexpected outcome: %+v", resp)
	}
}

func TestSearchTopKZeroIsEmpty(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	for _, tc := range []struct {
		path, body string
	}{
		{"/v1/search", `{"query":"a","top_k":0}`},
		{"/v1/search/vector", `{"vector":[1,0],"top_k":0}`},
		{"/v1/search/similar", `{"id":"img1","top_k":0}`},
	} {
		rec := doJSON(t, e, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body=%s", tc.path, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"results":[]`) {
			t.Fatalf("%s: body = %s, want empty results", tc.path, rec.Body.String())
		}
		if resp := decodeBody[SearchResponse](t, rec); len(resp.Results) != 0 || resp.IndexSize != 3 {
			t.Fatalf("%s: %+v", tc.path, resp)
		}
	}
}

func TestSearchVector(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	rec := doJSON(t, e, http.MethodPost, "/v1/search/vector", `{"vector":[0.7,0.7],"top_k":1}`)
	resp := decodeBody[SearchResponse](t, rec)
	if got := strings.Join(resultIDs(resp), ","); got != "img2" {
		t.Fatalf("results = %s", got)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/search/vector", `{"vector":[1,2,3]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("dimension mismatch status %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodPost, "/v1/search/vector", `{"vector":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty vector status %d", rec.Code)
	}
}

func TestSearchSimilar(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	resp := decodeBody[SearchResponse](t, doJSON(t, e, http.MethodPost, "/v1/search/similar", `{"id":"img1","top_k":1}`))
	if got := strings.Join(resultIDs(resp), ","); got != "img1" {
		t.Fatalf("results = %s", got)
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/search/similar", `{"id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status %d", rec.Code)
	}
}

func TestSearchImage(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/search/image?top_k=1", &body)
	req.Header.Set(echo.HeaderContentType, "image/png")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	if got := strings.Join(resultIDs(decodeBody[SearchResponse](t, rec)), ","); got != "img0" {
		t.Fatalf("results = %s", got)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/search/image", "not an image")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad image status %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodPost, "/v1/search/image?top_k=x", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad top_k status %d", rec.Code)
	}
}

func TestSearchEncoderUnavailableIsDropped(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{err: encoder.ErrUnavailable})

	rec := doJSON(t, e, http.MethodPost, "/v1/search", `{"query":"a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[SearchResponse](t, rec)
	if !resp.Dropped || resp.Reason != "encoder unavailable" || resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("unexpected outcome: %+v", resp)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Fatalf("results not an empty array: %s", rec.Body.String())
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	for _, tc := range []struct {
		path, body, param string
	}{
		{"/v1/search", `{`, ""},
		{"/v1/search", `{"query":"a","top_k":-1}`, "top_k"},
		{"/v1/search/vector", `{"vector":[1,0],"top_k":-3}`, "top_k"},
		{"/v1/search/similar", `{}`, "id"},
		{"/v1/search/image?top_k=x", ``, "top_k"},
		{"/v1/tokenize", `[1,2]`, ""},
		{"/v1/tokenize", `{"text":"a","context_length":-1}`, "context_length"},
	} {
		rec := doJSON(t, e, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: status %d", tc.path, tc.body, rec.Code)
		}
		body := decodeBody[map[string]ResponseError](t, rec)
		if body["error"].Type != "invalid_request_error" || body["error"].Message == "" {
			t.Fatalf("%s %s: error body %s", tc.path, tc.body, rec.Body.String())
		}
		if body["error"].Param != tc.param {
			t.Fatalf("%s %s: param = %q, want %q", tc.path, tc.body, body["error"].Param, tc.param)
		}
	}
}

func TestIndexReload(t *testing.T) {
	t.Parallel()
	e, path := newTestEcho(t, testEncoder{})

	info := decodeBody[IndexResponse](t, doJSON(t, e, http.MethodGet, "/v1/index", ""))
	if !info.Loaded || info.Count != 3 || info.Dim != 2 || info.Path != path {
		t.Fatalf("index info = %+v", info)
	}

	if err := os.WriteFile(path, []byte{9, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/index/reload", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("corrupt reload status %d body=%s", rec.Code, rec.Body.String())
	}
	info = decodeBody[IndexResponse](t, doJSON(t, e, http.MethodGet, "/v1/index", ""))
	if info.Count != 3 {
		t.Fatalf("previous index not kept: %+v", info)
	}

	idx := embedstore.New(1)
	if err := idx.Add("fresh", []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := embedstore.WriteFile(path, idx); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, e, http.MethodPost, "/v1/index/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status %d body=%s", rec.Code, rec.Body.String())
	}
	info = decodeBody[IndexResponse](t, rec)
	if info.Count != 1 || info.Dim != 3 {
		t.Fatalf("reloaded index info = %+v", info)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/index/reload", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing file status %d", rec.Code)
	}
}

func TestIndexWithoutPath(t *testing.T) {
	t.Parallel()
	e := echo.New()
	NewServer(ServerConfig{}).Register(e)

	info := decodeBody[IndexResponse](t, doJSON(t, e, http.MethodGet, "/v1/index", ""))
	if info.Loaded || info.Count != 0 {
		t.Fatalf("index info = %+v", info)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/index/reload", ""); rec.Code != http.StatusConflict {
		t.Fatalf("reload status %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"a"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("tokenize status %d", rec.Code)
	}
	resp := decodeBody[SearchResponse](t, doJSON(t, e, http.MethodPost, "/v1/search", `{"query":"a"}`))
	if len(resp.Results) != 0 || resp.Dropped {
		t.Fatalf("search without index = %+v", resp)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"ab","context_length":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[TokenizeResponse](t, rec)
	if len(resp.IDs) != 4 || resp.IDs[0] != 10 || resp.IDs[2] != 11 {
		t.Fatalf("ids = %v", resp.IDs)
	}

	resp = decodeBody[TokenizeResponse](t, doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"a"}`))
	if len(resp.IDs) != tokenizer.DefaultContextLength {
		t.Fatalf("default length = %d", len(resp.IDs))
	}

	resp = decodeBody[TokenizeResponse](t, doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"a","context_length":0}`))
	if len(resp.IDs) != 0 {
		t.Fatalf("zero length ids = %v", resp.IDs)
	}
}

func TestTokenizeContextLengthLimit(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, testEncoder{})

	rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", fmt.Sprintf(`{"text":"a","context_length":%d}`, DefaultMaxContextLength))
	if rec.Code != http.StatusOK {
		t.Fatalf("at limit: status %d body=%s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[TokenizeResponse](t, rec); len(resp.IDs) != DefaultMaxContextLength {
		t.Fatalf("at limit: %d ids", len(resp.IDs))
	}

	for _, n := range []int{DefaultMaxContextLength + 1, 1 << 60} {
		rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", fmt.Sprintf(`{"text":"a","context_length":%d}`, n))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%d: status %d", n, rec.Code)
		}
		body := decodeBody[map[string]ResponseError](t, rec)
		if body["error"].Param != "context_length" {
			t.Fatalf("%d: error body %s", n, rec.Body.String())
		}
	}

	small := echo.New()
	NewServer(ServerConfig{Tokenizer: testTokenizer(t), MaxContextLength: 8}).Register(small)
	if rec := doJSON(t, small, http.MethodPost, "/v1/tokenize", `{"text":"a","context_length":9}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("configured limit: status %d", rec.Code)
	}
	if rec := doJSON(t, small, http.MethodPost, "/v1/tokenize", `{"text":"a","context_length":8}`); rec.Code != http.StatusOK {
		t.Fatalf("configured limit: status %d", rec.Code)
	}
}

func TestGalleryAndUI(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "img0.png"), []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	NewServer(ServerConfig{ImagesDir: dir, UI: true}).Register(e)

	rec := doJSON(t, e, http.MethodGet, "/images/img0.png", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png bytes" {
		t.Fatalf("image: status %d body %q", rec.Code, rec.Body.String())
	}
	for _, p := range []string{"/images/missing.png", "/images/../secret", "/images/"} {
		if rec := doJSON(t, e, http.MethodGet, p, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", p, rec.Code)
		}
	}

	rec = doJSON(t, e, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>glint</title>") {
		t.Fatalf("ui: status %d body %q", rec.Code, rec.Body.String())
	}
}
