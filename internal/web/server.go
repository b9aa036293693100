// Package web serves the browser UI: the task grid with its overlays and
// the create form. All data goes through a TaskAPI.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/s1natex/task-management-system/internal/client"
	"github.com/s1natex/task-management-system/internal/middleware"
	"github.com/s1natex/task-management-system/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	msgAdded     = "Task added successfully!"
	msgAddFailed = "Error adding task. Please try again."
)

// TaskAPI is the part of the task API the UI uses. *client.Client
// implements it.
type TaskAPI interface {
	List(ctx context.Context) ([]tasks.Task, error)
	Create(ctx context.Context, in tasks.Input) (tasks.Task, string, error)
	Update(ctx context.Context, t tasks.Task) (string, error)
	Delete(ctx context.Context, id int64) (string, error)
}

type Server struct {
	api     TaskAPI
	logger  *slog.Logger
	columns []ActionColumn
	byKey   map[string]ActionColumn
	pages   *template.Template
	now     func() time.Time
}

func NewServer(api TaskAPI, logger *slog.Logger) *Server {
	s := &Server{
		api:    api,
		logger: logger,
		now:    time.Now,
	}
	s.register(toggleColumn{api: api}, viewColumn{}, editColumn{api: api}, deleteColumn{api: api})

	s.pages = template.Must(template.New("pages").Funcs(template.FuncMap{
		"ago":   humanize.Time,
		"stamp": formatStamp,
	}).ParseFS(templateFS, "templates/*.html"))
	return s
}

func (s *Server) register(cols ...ActionColumn) {
	s.byKey = make(map[string]ActionColumn, len(cols))
	for _, c := range cols {
		s.columns = append(s.columns, c)
		s.byKey[c.Key()] = c
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer, "taskui").Handler)
	r.Use(middleware.RequestLogger(s.logger))

	r.Get("/", s.handlePage)
	r.Get("/grid", s.handleGrid)
	r.Post("/tasks", s.handleCreate)
	r.Post("/tasks/{id}/{action}", s.handleAction)
	r.Handle("/metrics", middleware.MetricsHandler(prometheus.DefaultGatherer))
	return r
}

type formValues struct {
	Title       string
	Description string
}

type pageData struct {
	Flash        *Flash
	FlashSeconds int
	GridURL      template.URL
	Form         formValues
	Return       string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := ParseGridState(r.URL.Query())
	s.renderPage(w, http.StatusOK, st, formValues{}, popFlash(w, r))
}

func (s *Server) renderPage(w http.ResponseWriter, status int, st GridState, form formValues, flash *Flash) {
	s.render(w, status, "page", pageData{
		Flash:        flash,
		FlashSeconds: int(FlashTTL / time.Second),
		GridURL:      template.URL("/grid?" + st.Values().Encode()),
		Form:         form,
		Return:       st.Closed().Values().Encode(),
	})
}

// handleCreate posts the form to the API. Failures re-render the page with
// the submitted values; success redirects with a fresh refresh token so the
// grid fetches again and the form comes back empty.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	st := ParseGridState(returnValues(r.PostForm.Get("return")))
	form := formValues{
		Title:       r.PostForm.Get("title"),
		Description: r.PostForm.Get("description"),
	}

	if strings.TrimSpace(form.Title) == "" || strings.TrimSpace(form.Description) == "" {
		s.logger.InfoContext(r.Context(), "task_create_rejected", slog.String("reason", "missing_fields"))
		s.renderPage(w, http.StatusUnprocessableEntity, st, form, &Flash{Kind: flashError, Text: msgAddFailed})
		return
	}

	t, _, err := s.api.Create(r.Context(), tasks.Input{Title: form.Title, Description: form.Description})
	if err != nil {
		s.logger.WarnContext(r.Context(), "task_create_failed",
			slog.String("error", err.Error()),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		s.renderPage(w, http.StatusBadGateway, st, form, &Flash{Kind: flashError, Text: msgAddFailed})
		return
	}
	s.logger.InfoContext(r.Context(), "task_created", slog.Int64("id", t.ID))

	st = st.Closed()
	st.Refresh = s.refreshToken()
	setFlash(w, flashSuccess, msgAdded)
	http.Redirect(w, r, "/?"+st.Values().Encode()+"#add", http.StatusSeeOther)
}

// handleAction runs the OnAction of the column named in the path against the
// task the cell form carried, then returns to the grid.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	col, ok := s.byKey[chi.URLParam(r, "action")]
	if err != nil || !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	t, err := taskFromForm(id, r.PostForm)
	if err != nil {
		http.Error(w, "invalid task form", http.StatusBadRequest)
		return
	}
	st := ParseGridState(returnValues(r.PostForm.Get("return")))

	msg, err := col.OnAction(r.Context(), &t)
	switch {
	case err != nil:
		s.logger.WarnContext(r.Context(), "task_action_failed",
			slog.String("action", col.Key()),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		setFlash(w, flashError, msg)
		if col.Key() == "edit" {
			// keep the overlay open with what the user typed
			st.Edit = id
			st.EditDraft = true
			st.EditTitle = t.Title
			st.EditDescription = t.Description
		}
	case msg != "":
		s.logger.InfoContext(r.Context(), "task_action", slog.String("action", col.Key()), slog.Int64("id", id))
		setFlash(w, flashSuccess, msg)
	}
	http.Redirect(w, r, string(pageURL(st)), http.StatusSeeOther)
}

type header struct {
	Label string
	Href  template.URL
	Arrow string
}

type gridRow struct {
	Row
	Cells []template.HTML
}

type choice struct {
	Value   string
	Checked bool
}

type sizeOption struct {
	Size     int
	Selected bool
}

type editOverlay struct {
	ID          int64
	Title       string
	Description string
	IsCompleted bool
	Created     string
	Updated     string
	Action      string
	Return      string
}

type gridData struct {
	State    GridState
	Page     GridPage
	Headers  []header
	Rows     []gridRow
	Statuses []choice
	Sizes    []sizeOption
	Prev     template.URL
	Next     template.URL
	Close    template.URL
	View     *Row
	Edit     *editOverlay
}

// handleGrid renders the grid fragment from a fresh list on every request.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	st := ParseGridState(r.URL.Query())

	list, err := s.api.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "task_list_failed",
			slog.String("error", err.Error()),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		s.render(w, http.StatusBadGateway, "grid-error", fetchErrorMessage(err))
		return
	}

	rows := Rows(list)
	page := Apply(rows, st)
	st.Page = page.Page

	data := gridData{
		State:   st,
		Page:    page,
		Headers: s.headers(st),
		Close:   pageURL(st.Closed()),
	}
	for _, row := range page.Rows {
		gr := gridRow{Row: row}
		for _, col := range s.columns {
			gr.Cells = append(gr.Cells, col.Render(Cell{Row: row, State: st}))
		}
		data.Rows = append(data.Rows, gr)
	}
	for _, v := range []string{StatusCompleted, StatusPending} {
		data.Statuses = append(data.Statuses, choice{Value: v, Checked: len(st.Status) == 0 || contains(st.Status, v)})
	}
	for _, n := range PageSizes {
		data.Sizes = append(data.Sizes, sizeOption{Size: n, Selected: n == page.PageSize})
	}
	if page.Page > 1 {
		prev := st.Closed()
		prev.Page--
		data.Prev = pageURL(prev)
	}
	if page.Page < page.Pages {
		next := st.Closed()
		next.Page++
		data.Next = pageURL(next)
	}

	for i := range rows {
		switch rows[i].ID {
		case st.View:
			data.View = &rows[i]
		case st.Edit:
			data.Edit = editFor(rows[i], st)
		}
	}

	s.render(w, http.StatusOK, "grid", data)
}

// headers returns the data column headers followed by one per action
// column. Sorting cycles ascending, descending, off.
func (s *Server) headers(st GridState) []header {
	var out []header
	for _, c := range sortColumns {
		if c.key == "completed" {
			continue // the toggle column sorts by it
		}
		out = append(out, sortHeader(c.label, c.key, st))
	}
	for _, col := range s.columns {
		out = append(out, sortHeader(col.Header(), col.SortKey(), st))
	}
	return out
}

func sortHeader(label, key string, st GridState) header {
	h := header{Label: label}
	if key == "" {
		return h
	}
	next := st.Closed()
	next.Page = 1
	switch {
	case st.SortBy != key:
		next.SortBy, next.Desc = key, false
	case !st.Desc:
		next.Desc = true
		h.Arrow = " ▲"
	default:
		next.SortBy, next.Desc = "", false
		h.Arrow = " ▼"
	}
	h.Href = pageURL(next)
	return h
}

func editFor(row Row, st GridState) *editOverlay {
	e := &editOverlay{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		IsCompleted: row.IsCompleted,
		Created:     row.DateCreated.UTC().Format(time.RFC3339Nano),
		Updated:     row.DateUpdated.UTC().Format(time.RFC3339Nano),
		Action:      "/tasks/" + strconv.FormatInt(row.ID, 10) + "/edit",
		Return:      st.Closed().Values().Encode(),
	}
	if st.EditDraft {
		e.Title = st.EditTitle
		e.Description = st.EditDescription
	}
	return e
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template_render_failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "An unexpected error occurred. Please try again later.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) refreshToken() string {
	return strconv.FormatInt(s.now().UnixNano(), 36)
}

func pageURL(st GridState) template.URL {
	return template.URL("/?" + st.Values().Encode() + "#tasks")
}

func returnValues(raw string) url.Values {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return url.Values{}
	}
	return q
}

// fetchErrorMessage is what the grid shows in place of the rows when the
// list cannot be loaded.
func fetchErrorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP error! status: %d", apiErr.Status)
	}
	return "Failed to fetch"
}

func formatStamp(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04:05 UTC")
}
