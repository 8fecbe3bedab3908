package spatial

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propwatch/appraisal-cli/internal/model"
)

func newTestHandler(t *testing.T, st *fakeStore) *Handler {
	t.Helper()
	svc, err := NewService(st, 0.5, 2020)
	require.NoError(t, err)
	return NewHandler(svc)
}

func doQuery(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_LandValue(t *testing.T) {
	st := newFakeStore()
	st.landRows = []model.LandValue{
		{ID: 1, Lat: 25.762, Lon: -80.191, LandValue: 20, LandUnit: "Square Ft.", LandArea: 7500},
		{ID: 2, Lat: 25.770, Lon: -80.200, LandValue: 18.5, LandUnit: "Square Ft.", LandArea: 6000},
	}
	h := newTestHandler(t, st)

	rec := doQuery(t, h, "/api/v1?method=landValue&lat=25.762&lon=-80.191")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []model.LandValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, 18.5, got[1].LandValue)
}

func TestHandler_NoMatchesIsEmptyArray(t *testing.T) {
	h := newTestHandler(t, newFakeStore())

	rec := doQuery(t, h, "/api/v1?method=landValue&lat=25.762&lon=-80.191")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandler_UnsupportedMethod(t *testing.T) {
	h := newTestHandler(t, newFakeStore())

	rec := doQuery(t, h, "/api/v1?method=somethingElse&lat=1&lon=2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Completed)
	assert.Equal(t, "unsupported method", body.Message)
}

func TestHandler_MissingCoordinates(t *testing.T) {
	h := newTestHandler(t, newFakeStore())

	for _, target := range []string{
		"/api/v1?method=landValue",
		"/api/v1?method=landValue&lat=25.762",
		"/api/v1?method=landValue&lon=-80.191",
	} {
		rec := doQuery(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Missing latitude or longitude", body.Message)
	}
}

func TestHandler_InvalidCoordinates(t *testing.T) {
	h := newTestHandler(t, newFakeStore())

	rec := doQuery(t, h, "/api/v1?method=landValue&lat=abc&lon=-80.191")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid latitude or longitude", body.Message)
}

func TestHandler_StoreErrorIsOpaque(t *testing.T) {
	st := newFakeStore()
	st.landErr = eris.New("connection refused to 10.0.0.7")
	h := newTestHandler(t, st)

	rec := doQuery(t, h, "/api/v1?method=landValue&lat=25.762&lon=-80.191")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "query failed", body.Message)
	// Backend details never reach the client.
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}
