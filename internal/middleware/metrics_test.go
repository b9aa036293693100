package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	appmw "github.com/s1natex/task-management-system/internal/middleware"
)

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(appmw.NewHTTPMetrics(reg, "taskapi").Handler)

	r.Get("/api/task/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/task/"+id, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	}

	mrec := httptest.NewRecorder()
	appmw.MetricsHandler(reg).ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", mrec.Code)
	}
	body := mrec.Body.String()

	want := `taskapi_http_requests_total{method="GET",path="/api/task/{id}",status="404"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("expected metrics to contain %q\nfull body:\n%s", want, body)
	}
	if !strings.Contains(body, "taskapi_http_requests_in_flight 0") {
		t.Errorf("in-flight gauge should be back to zero")
	}
}

func TestNewHTTPMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := appmw.NewHTTPMetrics(reg, "taskui")
	b := appmw.NewHTTPMetrics(reg, "taskui") // must not panic

	h := chi.NewRouter()
	h.Use(a.Handler)
	h.Use(b.Handler)
	h.Get("/", func(w http.ResponseWriter, r *http.Request) {})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	mrec := httptest.NewRecorder()
	appmw.MetricsHandler(reg).ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if want := `taskui_http_requests_total{method="GET",path="/",status="200"} 2`; !strings.Contains(mrec.Body.String(), want) {
		t.Fatalf("both handles should share one counter:\n%s", mrec.Body.String())
	}
}
