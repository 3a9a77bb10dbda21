package generichttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointsSorted(t *testing.T) {
	rt := RouteTable{
		{Method: http.MethodPost, Path: "/b"}: nil,
		{Method: http.MethodGet, Path: "/b"}:  nil,
		{Method: http.MethodGet, Path: "/a"}:  nil,
	}
	assert.Equal(t, []string{"GET /a", "GET /b", "POST /b"}, rt.Endpoints())
}

func TestSubMuxSanitize(t *testing.T) {
	for _, in := range []string{"ats", "/ats", "ats/", "/ats/"} {
		assert.Equal(t, "/ats", SubMuxSanitize(in), in)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	var v float64
	rt := RouteTable{
		{Method: http.MethodGet, Path: "/v"}: GetFloat(func() (float64, error) { return v, nil }),
		{Method: http.MethodPost, Path: "/v"}: SetFloat(func(f float64) error {
			if f < 0 {
				return errors.New("negative")
			}
			v = f
			return nil
		}),
	}
	r := chi.NewRouter()
	rt.Bind(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v", strings.NewReader(`{"f64": 1.5}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v", nil))
	var f FloatT
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&f))
	assert.Equal(t, 1.5, f.F64)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v", strings.NewReader(`{"f64": -1}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetBool(t *testing.T) {
	var got bool
	h := SetBool(func(b bool) error { got = b; return nil })
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bool": true}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got)
}

func TestGetStringError(t *testing.T) {
	h := GetString(func() (string, error) { return "", errors.New("gone") })
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "gone")
}
