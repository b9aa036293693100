package web

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/s1natex/task-management-system/internal/tasks"
)

const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"

	DefaultPageSize = 20
)

// PageSizes are the only page sizes the grid offers.
var PageSizes = []int{10, 20}

// sortable data columns, in display order
var sortColumns = []struct{ key, label string }{
	{"id", "ID"},
	{"title", "Title"},
	{"description", "Description"},
	{"completed", "Completed"},
}

// Row is a task plus the display-only completed label.
type Row struct {
	tasks.Task
	Completed string
}

func Rows(list []tasks.Task) []Row {
	out := make([]Row, 0, len(list))
	for _, t := range list {
		out = append(out, Row{Task: t, Completed: completedLabel(t.IsCompleted)})
	}
	return out
}

func completedLabel(done bool) string {
	if done {
		return StatusCompleted
	}
	return StatusPending
}

// GridState is everything the grid keeps in the URL: sorting, filters,
// paging, the open overlay and the refresh token.
type GridState struct {
	SortBy string
	Desc   bool

	FilterID          string
	FilterTitle       string
	FilterDescription string
	Status            []string // empty means both values

	Page     int
	PageSize int

	View int64
	Edit int64

	// draft values of a failed edit, restored into the overlay
	EditTitle       string
	EditDescription string
	EditDraft       bool

	Refresh string
}

func ParseGridState(q url.Values) GridState {
	s := GridState{
		SortBy:            q.Get("sort"),
		Desc:              q.Get("desc") == "1",
		FilterID:          strings.TrimSpace(q.Get("f_id")),
		FilterTitle:       q.Get("f_title"),
		FilterDescription: q.Get("f_description"),
		Refresh:           q.Get("refresh"),
	}
	if !isSortColumn(s.SortBy) {
		s.SortBy = ""
		s.Desc = false
	}
	for _, v := range q["status"] {
		if (v == StatusCompleted || v == StatusPending) && !contains(s.Status, v) {
			s.Status = append(s.Status, v)
		}
	}

	s.Page, _ = strconv.Atoi(q.Get("page"))
	if s.Page < 1 {
		s.Page = 1
	}
	s.PageSize, _ = strconv.Atoi(q.Get("size"))
	if !validPageSize(s.PageSize) {
		s.PageSize = DefaultPageSize
	}

	s.View, _ = strconv.ParseInt(q.Get("view"), 10, 64)
	s.Edit, _ = strconv.ParseInt(q.Get("edit"), 10, 64)
	if s.Edit != 0 {
		if _, ok := q["edit_title"]; ok {
			s.EditDraft = true
			s.EditTitle = q.Get("edit_title")
			s.EditDescription = q.Get("edit_description")
		}
	}
	return s
}

// Values encodes the state back into query parameters, leaving defaults out.
func (s GridState) Values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("sort", s.SortBy)
	if s.Desc {
		q.Set("desc", "1")
	}
	set("f_id", s.FilterID)
	set("f_title", s.FilterTitle)
	set("f_description", s.FilterDescription)
	for _, v := range s.Status {
		q.Add("status", v)
	}
	if s.Page > 1 {
		q.Set("page", strconv.Itoa(s.Page))
	}
	if s.PageSize != 0 && s.PageSize != DefaultPageSize {
		q.Set("size", strconv.Itoa(s.PageSize))
	}
	if s.View != 0 {
		q.Set("view", strconv.FormatInt(s.View, 10))
	}
	if s.Edit != 0 {
		q.Set("edit", strconv.FormatInt(s.Edit, 10))
		if s.EditDraft {
			q.Set("edit_title", s.EditTitle)
			q.Set("edit_description", s.EditDescription)
		}
	}
	set("refresh", s.Refresh)
	return q
}

// Closed drops any open overlay.
func (s GridState) Closed() GridState {
	s.View, s.Edit = 0, 0
	s.EditDraft = false
	s.EditTitle, s.EditDescription = "", ""
	return s
}

// GridPage is one page of filtered and sorted rows.
type GridPage struct {
	Rows     []Row
	All      int // rows before filtering
	Total    int // rows after filtering
	Page     int
	Pages    int
	PageSize int
}

// Apply filters, sorts and paginates rows. The input slice is not modified.
func Apply(rows []Row, s GridState) GridPage {
	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if s.match(r) {
			filtered = append(filtered, r)
		}
	}

	if s.SortBy != "" {
		less := lessFunc(s.SortBy)
		sort.SliceStable(filtered, func(i, j int) bool {
			if s.Desc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}

	size := s.PageSize
	if !validPageSize(size) {
		size = DefaultPageSize
	}
	pages := (len(filtered) + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	page := min(max(s.Page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, len(filtered))

	return GridPage{
		Rows:     filtered[start:end],
		All:      len(rows),
		Total:    len(filtered),
		Page:     page,
		Pages:    pages,
		PageSize: size,
	}
}

func (s GridState) match(r Row) bool {
	if s.FilterID != "" && !strings.Contains(strconv.FormatInt(r.ID, 10), s.FilterID) {
		return false
	}
	if !containsFold(r.Title, s.FilterTitle) || !containsFold(r.Description, s.FilterDescription) {
		return false
	}
	if len(s.Status) > 0 && !contains(s.Status, r.Completed) {
		return false
	}
	return true
}

func lessFunc(key string) func(a, b Row) bool {
	switch key {
	case "title":
		return func(a, b Row) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "description":
		return func(a, b Row) bool { return strings.ToLower(a.Description) < strings.ToLower(b.Description) }
	case "completed":
		return func(a, b Row) bool { return a.Completed < b.Completed }
	default:
		return func(a, b Row) bool { return a.ID < b.ID }
	}
}

func containsFold(s, sub string) bool {
	sub = strings.TrimSpace(sub)
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func isSortColumn(key string) bool {
	for _, c := range sortColumns {
		if c.key == key {
			return true
		}
	}
	return false
}

func validPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}
