package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/starford/almanac/internal/diary"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/metacache"
	"github.com/starford/almanac/internal/scanner"
	"github.com/starford/almanac/internal/taskservice"
	"github.com/starford/almanac/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)

type testEnv struct {
	notes  string
	diary  string
	idx    *index.Indexer
	router http.Handler
}

// newEnv sets up temp notes and diary directories, the indexer, the
// service and the router. An empty token means auth is disabled.
func newEnv(t *testing.T, token string, sseHandler http.Handler) *testEnv {
	t.Helper()

	notesDir, store := testutil.TestVault(t)
	diaryDir, diaryStore := testutil.TestVault(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clock := func() time.Time { return fixedNow }

	sc := scanner.New(store, nil)
	idx := index.New(sc, store, index.WithLogger(logger), index.WithClock(clock))
	t.Cleanup(idx.Close)
	cache := metacache.New(store, metacache.WithLogger(logger), metacache.WithClock(clock))
	svc := taskservice.NewService(idx, cache, store, sc,
		taskservice.WithLogger(logger),
		taskservice.WithClock(clock),
		taskservice.WithRand(rand.New(rand.NewPCG(3, 3))))
	journal := diary.New(diaryStore, metacache.New(diaryStore, metacache.WithLogger(logger)), logger)

	return &testEnv{
		notes:  notesDir,
		diary:  diaryDir,
		idx:    idx,
		router: NewRouter(svc, journal, token != "", token, sseHandler),
	}
}

func (e *testEnv) rebuild(t *testing.T) {
	t.Helper()
	if _, err := e.idx.RebuildNow(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestListTasks(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "late.md", testutil.Task("title: Late\ndue: 2024-02-01\ncontexts: [home]\n"))
	testutil.WriteNote(t, e.notes, "work/high.md", testutil.Task("title: High\npriority: high\n"))
	testutil.WriteNote(t, e.notes, "done.md", testutil.Task("title: Done\nstatus: done\n"))
	testutil.WriteNote(t, e.notes, "plain.md", "---\ntitle: Not a task\n---\n")
	e.rebuild(t)

	w := e.do(t, http.MethodGet, "/tasks?date=2024-03-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[TaskListResponse](t, w)
	if resp.Date != "2024-03-01" || len(resp.Tasks) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Tasks[0].Path != "late.md" || !resp.Tasks[0].Overdue {
		t.Errorf("first = %+v", resp.Tasks[0])
	}

	resp = decode[TaskListResponse](t, e.do(t, http.MethodGet, "/tasks?status=done", nil))
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Done" {
		t.Errorf("done = %+v", resp.Tasks)
	}

	resp = decode[TaskListResponse](t, e.do(t, http.MethodGet, "/tasks?context=home", nil))
	if len(resp.Tasks) != 1 || resp.Tasks[0].Path != "late.md" {
		t.Errorf("context = %+v", resp.Tasks)
	}

	if w := e.do(t, http.MethodGet, "/tasks?date=tomorrow", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", w.Code)
	}
}

func TestTasksDue(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "a.md", testutil.Task("title: A\ndue: 2024-03-01\n"))
	testutil.WriteNote(t, e.notes, "b.md", testutil.Task("title: B\ndue: 2024-03-02\n"))
	e.rebuild(t)

	resp := decode[TaskListResponse](t, e.do(t, http.MethodGet, "/tasks/due", nil))
	if len(resp.Tasks) != 1 || resp.Tasks[0].Path != "a.md" {
		t.Errorf("due today = %+v", resp.Tasks)
	}
	resp = decode[TaskListResponse](t, e.do(t, http.MethodGet, "/tasks/due?date=2024-03-02", nil))
	if len(resp.Tasks) != 1 || resp.Tasks[0].Path != "b.md" {
		t.Errorf("due tomorrow = %+v", resp.Tasks)
	}
}

func TestCreateTask(t *testing.T) {
	e := newEnv(t, "", nil)

	w := e.do(t, http.MethodPost, "/tasks", map[string]any{
		"title":    "Buy milk",
		"due":      "2024-03-02",
		"contexts": []string{"errands"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	path := decode[CreateTaskResponse](t, w).Path
	if !regexp.MustCompile(`^240301[a-z]{3}\.md$`).MatchString(path) {
		t.Errorf("path = %q", path)
	}
	if got := testutil.ReadNote(t, e.notes, path); !strings.Contains(got, "# Buy milk") {
		t.Errorf("content = %q", got)
	}

	e.rebuild(t)
	resp := decode[TaskListResponse](t, e.do(t, http.MethodGet, "/tasks", nil))
	if len(resp.Tasks) != 1 || resp.Tasks[0].Due != "2024-03-02" {
		t.Errorf("tasks = %+v", resp.Tasks)
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	e := newEnv(t, "", nil)

	if w := e.do(t, http.MethodPost, "/tasks", map[string]any{"due": "2024-03-02"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/tasks", map[string]any{"title": "x", "priority": "urgent"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad priority status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", w.Code)
	}
}

func TestToggleAndPriority(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "work/a.md", testutil.Task("title: A\n"))

	w := e.do(t, http.MethodPost, "/tasks/toggle/work/a.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body = %s", w.Code, w.Body.String())
	}
	if v := decode[TaskView](t, w); v.Status != "in-progress" || v.Path != "work/a.md" {
		t.Errorf("toggle = %+v", v)
	}

	// Encoded slash.
	w = e.do(t, http.MethodPost, "/tasks/priority/work%2Fa.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("priority status = %d, body = %s", w.Code, w.Body.String())
	}
	if p := decode[PriorityResponse](t, w); p.Priority != "high" {
		t.Errorf("priority = %+v", p)
	}

	if w := e.do(t, http.MethodPost, "/tasks/toggle/ghost.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing toggle status = %d", w.Code)
	}
}

func TestToggleRecurring(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "r.md", testutil.Task("title: R\nrecurrence: {frequency: daily}\n"))

	w := e.do(t, http.MethodPost, "/tasks/toggle/r.md?date=2024-03-05", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if v := decode[TaskView](t, w); v.Status != "done" {
		t.Errorf("status = %q", v.Status)
	}
	if got := testutil.ReadNote(t, e.notes, "r.md"); !strings.Contains(got, "2024-03-05") {
		t.Errorf("instance not recorded: %q", got)
	}
}

func TestArchiveAndDelete(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "a.md", testutil.Task("title: A\n"))
	testutil.WriteNote(t, e.notes, "plain.md", "---\ntitle: Plain\n---\n")

	if w := e.do(t, http.MethodPut, "/tasks/archive/a.md", nil); w.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(testutil.ReadNote(t, e.notes, "a.md"), "archive") {
		t.Error("archive tag not written")
	}
	if w := e.do(t, http.MethodPut, "/tasks/archive/a.md", map[string]bool{"archived": false}); w.Code != http.StatusNoContent {
		t.Fatalf("restore status = %d", w.Code)
	}
	if strings.Contains(testutil.ReadNote(t, e.notes, "a.md"), "archive") {
		t.Error("archive tag not removed")
	}

	if w := e.do(t, http.MethodDelete, "/tasks/plain.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete non-task status = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/tasks/a.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/tasks/a.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", w.Code)
	}
}

func TestNotes(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "idea.md", "---\ntitle: Idea\ndateCreated: 2024-03-01T08:00:00\n---\nSee [[other|Other]].\n")
	testutil.WriteNote(t, e.notes, "old.md", "---\ntitle: Old\ndateCreated: 2024-02-01\n---\n")

	resp := decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil))
	if len(resp.Notes) != 1 || resp.Notes[0].Title != "Idea" {
		t.Errorf("notes = %+v", resp.Notes)
	}

	w := e.do(t, http.MethodGet, "/notes/idea.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	detail := decode[NoteDetail](t, w)
	if detail.Title != "Idea" || detail.IsTask || len(detail.Links) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if w := e.do(t, http.MethodGet, "/notes/missing.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}

func TestDiary(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.diary, "2024-03-01.md", "---\npomodoros: 3\nworkout: true\ntags: [travel]\n---\nTrain to Lyon\n")
	testutil.WriteNote(t, e.diary, "2024-03-03.md", "---\npomodoros: 2\n---\nquiet day\n")

	stats := decode[DiaryStats](t, e.do(t, http.MethodGet, "/diary/stats", nil))
	if stats.Pomodoros != 5 || stats.Workouts != 1 || stats.From != "2024-03-01" {
		t.Errorf("week = %+v", stats)
	}
	stats = decode[DiaryStats](t, e.do(t, http.MethodGet, "/diary/stats?period=month&date=2024-03-20", nil))
	if stats.Pomodoros != 5 || stats.To != "2024-03-31" {
		t.Errorf("month = %+v", stats)
	}
	if w := e.do(t, http.MethodGet, "/diary/stats?period=year", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad period status = %d", w.Code)
	}

	list := decode[DiaryListResponse](t, e.do(t, http.MethodGet, "/diary/search?q=LYON", nil))
	if len(list.Entries) != 1 || list.Entries[0] != "2024-03-01" {
		t.Errorf("search = %+v", list)
	}
	if w := e.do(t, http.MethodGet, "/diary/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty search status = %d", w.Code)
	}

	list = decode[DiaryListResponse](t, e.do(t, http.MethodGet, "/diary/tags/travel", nil))
	if len(list.Entries) != 1 {
		t.Errorf("tag = %+v", list)
	}

	preview := decode[DiaryPreviewResponse](t, e.do(t, http.MethodGet, "/diary/preview/2024-03-03", nil))
	if !strings.Contains(preview.Content, "quiet day") {
		t.Errorf("preview = %+v", preview)
	}
	if w := e.do(t, http.MethodGet, "/diary/preview/2024-03-02", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d", w.Code)
	}
}

func TestIndexEndpoints(t *testing.T) {
	e := newEnv(t, "", nil)
	testutil.WriteNote(t, e.notes, "a.md", testutil.Task("title: A\n"))

	w := e.do(t, http.MethodPost, "/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", w.Code, w.Body.String())
	}
	if r := decode[RebuildResponse](t, w); r.Stats.Tasks != 1 {
		t.Errorf("rebuild = %+v", r)
	}

	st := decode[IndexStatus](t, e.do(t, http.MethodGet, "/index", nil))
	if st.Tasks != 1 || st.Dirty {
		t.Errorf("status = %+v", st)
	}
}

func TestRequestID(t *testing.T) {
	e := newEnv(t, "", nil)

	w := e.do(t, http.MethodGet, "/index", nil)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("request id not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/index", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("request id = %q", got)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := newEnv(t, "secret123", nil)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := newEnv(t, "secret123", nil)
	if w := e.do(t, http.MethodGet, "/tasks", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := newEnv(t, "secret123", nil)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newEnv(t, "", nil)
	if w := e.do(t, http.MethodGet, "/tasks", nil); w.Code != http.StatusOK {
		t.Errorf("disabled = %d, want 200", w.Code)
	}
}

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newEnv(t, "secret", sseStub())
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newEnv(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
