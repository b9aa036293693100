package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/task-management-system/internal/client"
	"github.com/s1natex/task-management-system/internal/tasks"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))

// newUI serves the UI against the real task routes over an in-memory store.
func newUI(t *testing.T) (http.Handler, *client.Client) {
	t.Helper()
	r := chi.NewRouter()
	tasks.RegisterRoutes(r, tasks.NewService(tasks.NewInMemoryRepo(), discard), discard)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	api := client.New(srv.URL, client.WithHTTPClient(srv.Client()))
	return NewServer(api, discard).Routes(), api
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func post(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// flashOf returns "kind:text" from the flash cookie the response set.
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			v, err := url.QueryUnescape(c.Value)
			if err != nil {
				t.Fatalf("bad flash cookie %q", c.Value)
			}
			return v
		}
	}
	return ""
}

func cellForm(task tasks.Task, ret string) url.Values {
	return url.Values{
		"title":       {task.Title},
		"description": {task.Description},
		"isCompleted": {map[bool]string{true: "true", false: "false"}[task.IsCompleted]},
		"dateCreated": {task.DateCreated.Format(time.RFC3339Nano)},
		"dateUpdated": {task.DateUpdated.Format(time.RFC3339Nano)},
		"return":      {ret},
	}
}

func TestPage_Shell(t *testing.T) {
	h, _ := newUI(t)

	rec := get(t, h, "/?sort=title")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Loading tasks...", `data-src="/grid?sort=title"`, "Add New Task"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: url.QueryEscape("success:" + msgAdded)})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), msgAdded) {
		t.Errorf("flash not shown")
	}
}

func TestGrid_EmptyThenRows(t *testing.T) {
	h, api := newUI(t)

	rec := get(t, h, "/grid")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No tasks found.") {
		t.Fatalf("empty grid: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("grid fragment must not be cached")
	}

	ctx := context.Background()
	for _, title := range []string{"beta", "alpha"} {
		if _, _, err := api.Create(ctx, tasks.Input{Title: title, Description: "d"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	body := get(t, h, "/grid?sort=title").Body.String()
	if strings.Index(body, "alpha") > strings.Index(body, "beta") {
		t.Errorf("rows not sorted by title")
	}
	for _, want := range []string{"Title ▲", "Pending", "Page 1 of 1", "/tasks/1/toggle", "/tasks/2/delete"} {
		if !strings.Contains(body, want) {
			t.Errorf("grid missing %q", want)
		}
	}
}

func TestGrid_Overlays(t *testing.T) {
	h, api := newUI(t)
	if _, _, err := api.Create(context.Background(), tasks.Input{Title: "look", Description: "at me"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := get(t, h, "/grid?view=1").Body.String()
	if !strings.Contains(body, "Task Details") || !strings.Contains(body, "UTC") {
		t.Errorf("view overlay missing: %s", body)
	}

	body = get(t, h, "/grid?edit=1&edit_title=&edit_description=draft").Body.String()
	if !strings.Contains(body, "Edit Task") || !strings.Contains(body, ">draft</textarea>") {
		t.Errorf("edit overlay should show the draft: %s", body)
	}
}

func TestGrid_FetchError(t *testing.T) {
	h := NewServer(&fakeAPI{listErr: &client.APIError{Status: 500, Message: "boom"}}, discard).Routes()
	rec := get(t, h, "/grid")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "HTTP error! status: 500") || strings.Contains(body, "<table") {
		t.Errorf("unexpected body: %s", body)
	}

	h = NewServer(&fakeAPI{listErr: errors.New("dial tcp: refused")}, discard).Routes()
	if body := get(t, h, "/grid").Body.String(); !strings.Contains(body, "Failed to fetch") || strings.Contains(body, "dial tcp") {
		t.Errorf("transport errors should not leak: %s", body)
	}
}

func TestCreate(t *testing.T) {
	h, api := newUI(t)

	rec := post(t, h, "/tasks", url.Values{"title": {"Write docs"}, "description": {"for the UI"}, "return": {"size=10"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	u, err := url.Parse(loc)
	if err != nil || u.Query().Get("refresh") == "" || u.Query().Get("size") != "10" || u.Fragment != "add" {
		t.Errorf("Location = %q", loc)
	}
	if got := flashOf(t, rec); got != "success:"+msgAdded {
		t.Errorf("flash = %q", got)
	}

	list, err := api.List(context.Background())
	if err != nil || len(list) != 1 || list[0].Title != "Write docs" {
		t.Fatalf("list = %+v, %v", list, err)
	}
}

func TestCreate_MissingField(t *testing.T) {
	h, api := newUI(t)

	rec := post(t, h, "/tasks", url.Values{"title": {"  "}, "description": {"keep me"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, msgAddFailed) || !strings.Contains(body, ">keep me</textarea>") {
		t.Errorf("form should keep its values: %s", body)
	}
	if list, _ := api.List(context.Background()); len(list) != 0 {
		t.Errorf("API should not have been called, got %+v", list)
	}
}

func TestCreate_APIFailure(t *testing.T) {
	api := &fakeAPI{createErr: &client.APIError{Status: 500}}
	h := NewServer(api, discard).Routes()

	rec := post(t, h, "/tasks", url.Values{"title": {"t"}, "description": {"d"}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, msgAddFailed) || !strings.Contains(body, `value="t"`) {
		t.Errorf("unexpected body: %s", body)
	}
	if len(api.created) != 1 {
		t.Errorf("created = %+v", api.created)
	}
}

func TestActions(t *testing.T) {
	h, api := newUI(t)
	ctx := context.Background()
	task, _, err := api.Create(ctx, tasks.Input{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := post(t, h, "/tasks/1/toggle", cellForm(task, "sort=title"))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?sort=title#tasks" {
		t.Fatalf("toggle: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if got := flashOf(t, rec); got != "success:Task status updated!" {
		t.Errorf("flash = %q", got)
	}
	if got, _ := api.Get(ctx, 1); !got.IsCompleted {
		t.Errorf("toggle did not persist")
	}

	form := cellForm(task, "")
	form.Set("title", "renamed")
	rec = post(t, h, "/tasks/1/edit", form)
	if got := flashOf(t, rec); got != "success:Task updated successfully!" {
		t.Errorf("flash = %q", got)
	}
	if got, _ := api.Get(ctx, 1); got.Title != "renamed" || got.IsCompleted {
		t.Errorf("edit sent %+v", got)
	}

	rec = post(t, h, "/tasks/1/delete", cellForm(task, ""))
	if got := flashOf(t, rec); got != "success:Task deleted successfully!" {
		t.Errorf("flash = %q", got)
	}
	if list, _ := api.List(ctx); len(list) != 0 {
		t.Errorf("task not deleted: %+v", list)
	}
}

func TestActions_EditFailureKeepsOverlay(t *testing.T) {
	h, api := newUI(t)
	task, _, err := api.Create(context.Background(), tasks.Input{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	form := cellForm(task, "page=1")
	form.Set("title", "")
	form.Set("description", "changed")
	rec := post(t, h, "/tasks/1/edit", form)
	if got := flashOf(t, rec); got != "error:Error updating task. Please try again." {
		t.Errorf("flash = %q", got)
	}

	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	q := u.Query()
	if q.Get("edit") != "1" || q.Get("edit_description") != "changed" {
		t.Errorf("overlay state lost: %q", u.RawQuery)
	}
	if _, ok := q["edit_title"]; !ok {
		t.Errorf("empty draft title should still be carried")
	}
}

func TestActions_Unknown(t *testing.T) {
	h, _ := newUI(t)
	if rec := post(t, h, "/tasks/1/archive", url.Values{}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown action: %d", rec.Code)
	}
	if rec := post(t, h, "/tasks/abc/delete", url.Values{}); rec.Code != http.StatusNotFound {
		t.Errorf("bad id: %d", rec.Code)
	}
}
