package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.com/nasa-jpl/golaborate-ats/generichttp"
)

type routes generichttp.RouteTable

func (r routes) RT() generichttp.RouteTable { return generichttp.RouteTable(r) }

func newRouter(l *Locker) chi.Router {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rt := routes{
		{Method: http.MethodGet, Path: "/state"}:    ok,
		{Method: http.MethodPost, Path: "/acquire"}: ok,
	}
	Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	rt.RT().Bind(r)
	return r
}

func serve(r http.Handler, method, path, body string) int {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec.Code
}

func TestLockBlocksMutations(t *testing.T) {
	l := New()
	r := newRouter(l)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/acquire", ""))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/lock", `{"bool": true}`))
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, serve(r, http.MethodPost, "/acquire", ""))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/state", ""))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/lock", `{"bool": false}`))
	assert.False(t, l.Locked())
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/acquire", ""))
}

func TestDoNotProtect(t *testing.T) {
	l := New()
	l.DoNotProtect = append(l.DoNotProtect, "acquire")
	l.Lock()
	r := newRouter(l)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/acquire", ""))
}
