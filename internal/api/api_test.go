package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/journal"
	"github.com/starford/inkmath/internal/models"
	"github.com/starford/inkmath/internal/session"
	"github.com/starford/inkmath/internal/storage"
	"github.com/starford/inkmath/internal/testutil"
)

// groupDoc holds one group of two leaves a and b.
const groupDoc = `{
  "type": "Math", "version": "3", "id": "MainBlock",
  "expressions": [{
    "type": "group", "id": "g",
    "bounding-box": {"x": 0, "y": 0, "width": 20, "height": 5},
    "operands": [
      {"type": "number", "label": "1", "id": "a",
       "bounding-box": {"x": 0, "y": 0, "width": 5, "height": 5},
       "items": [{"X": [0, 5], "Y": [0, 5], "T": [0, 1], "F": [1, 1]}]},
      {"type": "symbol", "label": "x", "id": "b",
       "bounding-box": {"x": 15, "y": 0, "width": 5, "height": 5},
       "items": [{"X": [15, 20], "Y": [0, 5], "T": [0, 1], "F": [1, 1]}]}
    ]
  }]
}`

const leafDoc = `{
  "type": "Math", "version": "3", "id": "MainBlock",
  "expressions": [
    {"type": "number", "label": "7", "id": "seven",
     "bounding-box": {"x": 0, "y": 0, "width": 5, "height": 5},
     "items": [{"X": [0, 5], "Y": [0, 5], "T": [0, 1], "F": [1, 1]}]}
  ]
}`

type testDeps struct {
	sess   *session.Session
	rec    *testutil.StaticRecognizer
	store  *storage.FS
	db     *journal.DB
	router http.Handler
}

// testEnv sets up a temp drop directory, SQLite journal, session, and router.
// A non-empty token enables auth.
func testEnv(t *testing.T, token string) *testDeps {
	t.Helper()
	return testEnvWithSSE(t, token, nil)
}

func testEnvWithSSE(t *testing.T, token string, sse http.Handler) *testDeps {
	t.Helper()

	_, store := testutil.TestDrop(t)
	db := testutil.TestJournal(t)

	rec := &testutil.StaticRecognizer{Doc: leafDoc}
	sess := session.New(rec,
		session.WithName("test"),
		session.WithJournal(db),
		session.WithRecognizeAfterErase(false),
	)
	router := NewRouter(RouterConfig{
		Editor:      sess,
		Rounds:      db,
		Store:       store,
		AuthEnabled: token != "",
		Token:       token,
		SSE:         sse,
	})
	return &testDeps{sess: sess, rec: rec, store: store, db: db, router: router}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeTree(t *testing.T, w *httptest.ResponseRecorder) models.Tree {
	t.Helper()
	var tree models.Tree
	if err := json.Unmarshal(w.Body.Bytes(), &tree); err != nil {
		t.Fatalf("decode tree: %v (body %s)", err, w.Body.String())
	}
	return tree
}

func blockIDs(t *testing.T, h http.Handler) []string {
	t.Helper()
	w := do(t, h, http.MethodGet, "/blocks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list blocks = %d", w.Code)
	}
	var resp BlockListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(resp.Blocks))
	for i, b := range resp.Blocks {
		ids[i] = b.ID
	}
	return ids
}

func loadGroup(t *testing.T, d *testDeps) {
	t.Helper()
	if _, err := d.sess.Load(context.Background(), []byte(groupDoc), "test"); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestAddStrokeRecognises(t *testing.T) {
	d := testEnv(t, "")

	stroke := StrokeRequest{Points: []geom.StrokePoint{
		{Point: geom.Point{X: 1, Y: 1}},
		{Point: geom.Point{X: 10, Y: 12}, T: 5},
	}}
	w := do(t, d.router, http.MethodPost, "/strokes", stroke)
	if w.Code != http.StatusOK {
		t.Fatalf("add stroke = %d, body = %s", w.Code, w.Body.String())
	}
	tree := decodeTree(t, w)
	if tree.Root == nil || len(tree.Root.Children) != 1 || tree.Root.Children[0].ID != "seven" {
		t.Fatalf("unexpected tree: %+v", tree.Root)
	}
	if tree.Seq != 1 {
		t.Errorf("seq = %d, want 1", tree.Seq)
	}
	if d.rec.Calls() != 1 {
		t.Errorf("recognizer calls = %d, want 1", d.rec.Calls())
	}
}

func TestAddStrokeEmpty(t *testing.T) {
	d := testEnv(t, "")

	w := do(t, d.router, http.MethodPost, "/strokes", StrokeRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty stroke = %d, want 400", w.Code)
	}
	if d.rec.Calls() != 0 {
		t.Errorf("recognizer should not be called, got %d calls", d.rec.Calls())
	}
}

func TestInvalidJSONBody(t *testing.T) {
	d := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/strokes", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestGetTreeEmpty(t *testing.T) {
	d := testEnv(t, "")

	w := do(t, d.router, http.MethodGet, "/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get tree = %d", w.Code)
	}
	tree := decodeTree(t, w)
	if tree.Session != "test" {
		t.Errorf("session = %q, want test", tree.Session)
	}
}

func TestDeleteBlock(t *testing.T) {
	d := testEnv(t, "")
	loadGroup(t, d)

	w := do(t, d.router, http.MethodDelete, "/blocks/a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}

	ids := blockIDs(t, d.router)
	for _, id := range ids {
		if id == "a" || id == "g" {
			t.Errorf("block %q should be gone, have %v", id, ids)
		}
	}
	if len(ids) != 2 || ids[1] != "b" {
		t.Errorf("ids = %v, want [MainBlock b]", ids)
	}
}

func TestDeleteBlockNotFound(t *testing.T) {
	d := testEnv(t, "")
	loadGroup(t, d)

	w := do(t, d.router, http.MethodDelete, "/blocks/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing block = %d, want 404", w.Code)
	}
}

func TestDeleteBlocksBatch(t *testing.T) {
	d := testEnv(t, "")
	loadGroup(t, d)

	w := do(t, d.router, http.MethodPost, "/blocks/delete", DeleteBlocksRequest{IDs: []string{"a", "b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("batch delete = %d, body = %s", w.Code, w.Body.String())
	}
	if ids := blockIDs(t, d.router); len(ids) != 1 {
		t.Errorf("ids = %v, want only the document root", ids)
	}

	w = do(t, d.router, http.MethodPost, "/blocks/delete", DeleteBlocksRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty ids = %d, want 400", w.Code)
	}
}

func TestErase(t *testing.T) {
	d := testEnv(t, "")
	loadGroup(t, d)

	// A vertical line through b's stroke, which runs from (15,0) to (20,5)
	// in document units.
	x := 17.5 * 3.775
	req := EraseRequest{Points: []geom.Point{{X: x, Y: -10}, {X: x, Y: 40}}}
	w := do(t, d.router, http.MethodPost, "/erase", req)
	if w.Code != http.StatusOK {
		t.Fatalf("erase = %d, body = %s", w.Code, w.Body.String())
	}
	ids := blockIDs(t, d.router)
	if len(ids) != 2 || ids[1] != "a" {
		t.Errorf("ids = %v, want [MainBlock a]", ids)
	}

	w = do(t, d.router, http.MethodPost, "/erase", EraseRequest{Points: []geom.Point{{X: 1, Y: 1}}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("single point eraser = %d, want 400", w.Code)
	}
}

func TestUploadDocumentRaw(t *testing.T) {
	d := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(groupDoc)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	if ids := blockIDs(t, d.router); len(ids) != 4 {
		t.Errorf("ids = %v, want 4 blocks", ids)
	}
}

func TestUploadDocumentRejected(t *testing.T) {
	d := testEnv(t, "")

	bad := `{"type": "Math", "version": "3", "expressions": [{"type": "bogus", "id": "z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(bad)))
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad document = %d, want 400", w.Code)
	}
	var resp errResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JSON == "" {
		t.Error("expected the offending fragment in the response")
	}
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadDocumentMultipart(t *testing.T) {
	d := testEnv(t, "")

	w := uploadFile(t, d.router, "sum.json", []byte(groupDoc))
	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(d.store.Root(), "sum.json")); err != nil {
		t.Errorf("uploaded document not stored: %v", err)
	}

	w = do(t, d.router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list documents = %d", w.Code)
	}
	var resp DocumentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Path != "sum.json" {
		t.Errorf("documents = %+v", resp.Documents)
	}
}

func TestUploadDocument_InvalidFilename(t *testing.T) {
	d := testEnv(t, "")

	for _, name := range []string{"notes.txt", ".hidden.json", ".json"} {
		w := uploadFile(t, d.router, name, []byte(groupDoc))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestUploadDocument_MissingFileField(t *testing.T) {
	d := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", w.Code)
	}
}

func TestListRounds(t *testing.T) {
	d := testEnv(t, "")

	stroke := StrokeRequest{Points: []geom.StrokePoint{{Point: geom.Point{X: 1, Y: 1}}}}
	if w := do(t, d.router, http.MethodPost, "/strokes", stroke); w.Code != http.StatusOK {
		t.Fatalf("add stroke = %d", w.Code)
	}

	w := do(t, d.router, http.MethodGet, "/rounds", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list rounds = %d", w.Code)
	}
	var resp RoundListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(resp.Rounds))
	}
	if r := resp.Rounds[0]; r.Seq != 1 || r.Size != len(leafDoc) {
		t.Errorf("round = %+v", r)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	d := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	d := testEnv(t, "secret123")

	w := do(t, d.router, http.MethodGet, "/tree", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	d := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	d := testEnvWithSSE(t, "secret", blockingSSE)

	w := do(t, d.router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	d := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_NotMounted(t *testing.T) {
	d := testEnv(t, "")

	w := do(t, d.router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("SSE without handler = %d, want 404", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	d := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	// The query parameter is not accepted outside event streams.
	w = do(t, d.router, http.MethodGet, "/tree?access_token=tok", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tree with query token = %d, want 401", w.Code)
	}
}
