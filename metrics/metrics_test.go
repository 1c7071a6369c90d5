package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Middleware)
	r.HandleFunc("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods("POST")

	before := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/posts/{id}/like", "418"))
	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/posts/"+id+"/like", nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/posts/{id}/like", "418"))

	if after-before != 2 {
		t.Fatalf("counter moved by %v, want 2", after-before)
	}
}

func TestDomainCounters(t *testing.T) {
	liked := testutil.ToFloat64(likeToggles.WithLabelValues("liked"))
	RecordLikeToggle(true)
	if got := testutil.ToFloat64(likeToggles.WithLabelValues("liked")); got != liked+1 {
		t.Errorf("liked toggles = %v, want %v", got, liked+1)
	}

	ok := testutil.ToFloat64(uploads.WithLabelValues("success"))
	RecordUpload("success")
	if got := testutil.ToFloat64(uploads.WithLabelValues("success")); got != ok+1 {
		t.Errorf("uploads = %v, want %v", got, ok+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordComment()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "pesb_comments_total") {
		t.Fatal("pesb_comments_total missing from exposition")
	}
}
