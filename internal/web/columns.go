package web

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/s1natex/task-management-system/internal/tasks"
)

// ActionColumn is one interactive grid column. Render draws the cell for a
// row; OnAction runs when the cell's form is posted back and returns the
// transient message to show, on failure as well as on success.
type ActionColumn interface {
	Key() string
	Header() string
	SortKey() string // grid sort key, empty when the column cannot sort
	Render(c Cell) template.HTML
	OnAction(ctx context.Context, t *tasks.Task) (string, error)
}

// Cell is what a column needs to draw one row.
type Cell struct {
	Row   Row
	State GridState
}

// Action is the form target for the column's OnAction.
func (c Cell) Action(key string) string {
	return "/tasks/" + strconv.FormatInt(c.Row.ID, 10) + "/" + key
}

// Return is the grid state to come back to after an action.
func (c Cell) Return() string {
	return c.State.Closed().Values().Encode()
}

func (c Cell) Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var cellTemplates = template.Must(template.New("cells").Parse(`
{{define "task-fields"}}<input type="hidden" name="title" value="{{.Row.Title}}">
<input type="hidden" name="description" value="{{.Row.Description}}">
<input type="hidden" name="isCompleted" value="{{.Row.IsCompleted}}">
<input type="hidden" name="dateCreated" value="{{.Stamp .Row.DateCreated}}">
<input type="hidden" name="dateUpdated" value="{{.Stamp .Row.DateUpdated}}">
<input type="hidden" name="return" value="{{.Return}}">{{end}}

{{define "toggle"}}<form method="post" action="{{.Action "toggle"}}" class="inline">{{template "task-fields" .}}
<button type="submit" class="status {{if .Row.IsCompleted}}status-completed{{else}}status-pending{{end}}" title="Click to toggle status">{{.Row.Completed}}</button></form>{{end}}

{{define "delete"}}<form method="post" action="{{.Action "delete"}}" class="inline">{{template "task-fields" .}}
<button type="submit">Delete</button></form>{{end}}

{{define "open"}}<a class="button" href="{{.Href}}">{{.Label}}</a>{{end}}
`))

func renderCell(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := cellTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(buf.String())
}

// openLink renders a link that opens an overlay through the grid state.
func openLink(label string, st GridState) template.HTML {
	return renderCell("open", struct {
		Href  template.URL
		Label string
	}{
		Href:  template.URL("/?" + st.Values().Encode() + "#tasks"),
		Label: label,
	})
}

type toggleColumn struct{ api TaskAPI }

func (toggleColumn) Key() string     { return "toggle" }
func (toggleColumn) Header() string  { return "Completed" }
func (toggleColumn) SortKey() string { return "completed" }

func (toggleColumn) Render(c Cell) template.HTML { return renderCell("toggle", c) }

// OnAction flips the completion flag locally, sends the whole task and
// restores the flag if the update fails.
func (col toggleColumn) OnAction(ctx context.Context, t *tasks.Task) (string, error) {
	t.IsCompleted = !t.IsCompleted
	if _, err := col.api.Update(ctx, *t); err != nil {
		t.IsCompleted = !t.IsCompleted
		return "Error updating status. Please try again.", err
	}
	return "Task status updated!", nil
}

type viewColumn struct{}

func (viewColumn) Key() string     { return "view" }
func (viewColumn) Header() string  { return "View" }
func (viewColumn) SortKey() string { return "" }

func (viewColumn) Render(c Cell) template.HTML {
	st := c.State.Closed()
	st.View = c.Row.ID
	return openLink("View", st)
}

// OnAction has nothing to send: the view overlay is read-only.
func (viewColumn) OnAction(context.Context, *tasks.Task) (string, error) { return "", nil }

type editColumn struct{ api TaskAPI }

func (editColumn) Key() string     { return "edit" }
func (editColumn) Header() string  { return "Edit" }
func (editColumn) SortKey() string { return "" }

func (editColumn) Render(c Cell) template.HTML {
	st := c.State.Closed()
	st.Edit = c.Row.ID
	return openLink("Edit", st)
}

func (col editColumn) OnAction(ctx context.Context, t *tasks.Task) (string, error) {
	if _, err := col.api.Update(ctx, *t); err != nil {
		return "Error updating task. Please try again.", err
	}
	return "Task updated successfully!", nil
}

type deleteColumn struct{ api TaskAPI }

func (deleteColumn) Key() string     { return "delete" }
func (deleteColumn) Header() string  { return "Delete" }
func (deleteColumn) SortKey() string { return "" }

func (deleteColumn) Render(c Cell) template.HTML { return renderCell("delete", c) }

func (col deleteColumn) OnAction(ctx context.Context, t *tasks.Task) (string, error) {
	if _, err := col.api.Delete(ctx, t.ID); err != nil {
		return "Error deleting task. Please try again.", err
	}
	return "Task deleted successfully!", nil
}

// taskFromForm rebuilds the task a cell form carried.
func taskFromForm(id int64, form url.Values) (tasks.Task, error) {
	t := tasks.Task{
		ID:          id,
		Title:       form.Get("title"),
		Description: form.Get("description"),
	}
	var err error
	if v := form.Get("isCompleted"); v != "" {
		if t.IsCompleted, err = strconv.ParseBool(v); err != nil {
			return tasks.Task{}, err
		}
	}
	if v := form.Get("dateCreated"); v != "" {
		if t.DateCreated, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return tasks.Task{}, err
		}
	}
	if v := form.Get("dateUpdated"); v != "" {
		if t.DateUpdated, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return tasks.Task{}, err
		}
	}
	return t, nil
}
