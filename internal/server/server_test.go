package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/media"
	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

type testEnv struct {
	router *gin.Engine
	tokens *auth.TokenManager
	assets *asset.MemoryStore
	token  string
}

func newEnv(t *testing.T, editRate int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()

	records := store.NewMemoryStore()
	assets := asset.NewMemoryStore("demo", "memes")
	coord, err := media.NewCoordinator(records, assets, nil, reg)
	require.NoError(t, err)

	hash, err := auth.HashPassword("correct horse", auth.HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16})
	require.NoError(t, err)
	require.NoError(t, records.CreateAdmin(context.Background(), model.Admin{Username: "root", PasswordHash: hash, Role: model.RoleAdmin}))

	tokens, err := auth.NewTokenManager("server-test-secret-0123", time.Hour)
	require.NoError(t, err)
	router, err := NewRouter(Options{
		Media:             coord,
		Auth:              auth.NewService(records, tokens),
		Registerer:        reg,
		Gatherer:          reg,
		EditRatePerMinute: editRate,
		Debug:             true,
	})
	require.NoError(t, err)

	token, _, err := tokens.Issue(model.Principal{UserID: "root", Role: model.RoleAdmin})
	require.NoError(t, err)
	return &testEnv{router: router, tokens: tokens, assets: assets, token: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) admin(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+e.token)
	return req
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, fileField string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(fileField, name)
		require.NoError(t, err)
		fw.Write(data)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) createMeme(t *testing.T, title, tags string) model.Meme {
	t.Helper()
	w := e.do(multipartRequest(t, http.MethodPost, "/api/memes",
		map[string]string{"title": title, "tags": tags}, "image", map[string][]byte{"m.png": pngBytes}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Meme](t, w)
}

func TestHealthAndRequestID(t *testing.T) {
	e := newEnv(t, 0)
	w := e.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = e.do(req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestCreateListGet(t *testing.T) {
	e := newEnv(t, 0)
	m := e.createMeme(t, "Hello", "a, b")
	assert.Equal(t, []string{"a", "b"}, m.Tags)
	assert.Equal(t, 0, m.EditedByUsers)
	assert.False(t, m.IsLocked)
	assert.Equal(t, 1, e.assets.Len())

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/memes?search=HELL&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]model.Meme](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/memes/"+m.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/memes/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRejectsBadQuery(t *testing.T) {
	e := newEnv(t, 0)
	for _, q := range []string{"sortBy=oldest", "limit=-1", "offset=x"} {
		w := e.do(httptest.NewRequest(http.MethodGet, "/api/memes?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	w := e.do(httptest.NewRequest(http.MethodGet, "/api/memes", nil))
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t, 0)

	w := e.do(multipartRequest(t, http.MethodPost, "/api/memes", map[string]string{"title": " "}, "image", map[string][]byte{"m.png": pngBytes}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decode[errorBody](t, w).Field)

	w = e.do(multipartRequest(t, http.MethodPost, "/api/memes", map[string]string{"title": "ok"}, "image", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "image", decode[errorBody](t, w).Field)

	w = e.do(multipartRequest(t, http.MethodPost, "/api/memes", map[string]string{"title": "ok"}, "image", map[string][]byte{"notes.txt": []byte("just text")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, e.assets.Len(), "nothing uploaded for rejected requests")
}

func TestCommunityEditAndLock(t *testing.T) {
	e := newEnv(t, 0)
	m := e.createMeme(t, "before", "x")

	w := e.do(jsonRequest(http.MethodPatch, "/api/memes/"+m.ID+"/edit", `{"title":"after","tags":"y, z"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode[model.Meme](t, w)
	assert.Equal(t, []string{"y", "z"}, edited.Tags)
	assert.Equal(t, 1, edited.EditedByUsers)

	w = e.do(jsonRequest(http.MethodPatch, "/api/memes/"+m.ID+"/edit", `{"title":"again","tags":["q"]}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(e.admin(httptest.NewRequest(http.MethodPost, "/api/admin/memes/"+m.ID+"/lock", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Meme](t, w).IsLocked)

	w = e.do(jsonRequest(http.MethodPatch, "/api/memes/"+m.ID+"/edit", `{"title":"vandal"}`))
	assert.Equal(t, http.StatusLocked, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/memes/"+m.ID, nil))
	got := decode[model.Meme](t, w)
	assert.Equal(t, "again", got.Title)
	assert.Equal(t, 2, got.EditedByUsers)
	assert.Len(t, got.EditHistory, 2)
}

func TestEditRateLimit(t *testing.T) {
	e := newEnv(t, 2)
	m := e.createMeme(t, "busy", "")

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = e.do(jsonRequest(http.MethodPatch, "/api/memes/"+m.ID+"/edit", `{"title":"t"}`)).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAdminAuth(t *testing.T) {
	e := newEnv(t, 0)
	m := e.createMeme(t, "guarded", "")
	url := "/api/admin/memes/" + m.ID + "/feature"

	w := e.do(httptest.NewRequest(http.MethodPost, url, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, e.do(req).Code)

	userToken, _, _ := e.tokens.Issue(model.Principal{UserID: "bob", Role: "user"})
	req = httptest.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, e.do(req).Code)

	w = e.do(e.admin(httptest.NewRequest(http.MethodPost, url, nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Meme](t, w).IsFeatured)
}

func TestLogin(t *testing.T) {
	e := newEnv(t, 0)

	w := e.do(jsonRequest(http.MethodPost, "/api/admin/login", `{"username":"root","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(jsonRequest(http.MethodPost, "/api/admin/login", `{"username":"root"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(jsonRequest(http.MethodPost, "/api/admin/login", `{"username":"root","password":"correct horse"}`))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	token, _ := body["token"].(string)
	p, err := e.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "root", p.UserID)
}

func TestRenameAndDelete(t *testing.T) {
	e := newEnv(t, 0)
	m := e.createMeme(t, "old", "")

	w := e.do(e.admin(multipartRequest(t, http.MethodPut, "/api/admin/memes/"+m.ID,
		map[string]string{"title": "new", "tags": "fresh"}, "image", map[string][]byte{"n.png": pngBytes})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	renamed := decode[media.RenameResult](t, w)
	assert.True(t, renamed.AssetReplaced)
	assert.True(t, renamed.OldAssetDeleted)
	assert.Equal(t, 1, e.assets.Len())

	w = e.do(e.admin(httptest.NewRequest(http.MethodDelete, "/api/admin/memes/"+m.ID, nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, media.DeleteResult{AssetDeleted: true, RecordDeleted: true}, decode[media.DeleteResult](t, w))
	assert.Zero(t, e.assets.Len())

	w = e.do(e.admin(httptest.NewRequest(http.MethodDelete, "/api/admin/memes/"+m.ID, nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenameWithoutTagsFieldKeepsTags(t *testing.T) {
	e := newEnv(t, 0)
	m := e.createMeme(t, "old", "keep, these")

	w := e.do(e.admin(multipartRequest(t, http.MethodPut, "/api/admin/memes/"+m.ID,
		map[string]string{"title": "old"}, "image", map[string][]byte{"n.png": pngBytes})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	renamed := decode[media.RenameResult](t, w)
	assert.Equal(t, []string{"keep", "these"}, renamed.Meme.Tags)

	w = e.do(e.admin(multipartRequest(t, http.MethodPut, "/api/admin/memes/"+m.ID,
		map[string]string{"title": "old", "tags": ""}, "", nil)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[media.RenameResult](t, w).Meme.Tags)
}

func TestBulkUpload(t *testing.T) {
	e := newEnv(t, 0)
	w := e.do(e.admin(multipartRequest(t, http.MethodPost, "/api/admin/memes/bulk", nil, "images",
		map[string][]byte{"a.png": pngBytes, "b.png": pngBytes, "c.txt": []byte("nope")})))
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	res := decode[media.BulkResult](t, w)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "c.txt", res.Failed[0].Name)
	for _, m := range res.Created {
		assert.Equal(t, model.PlaceholderTitle, m.Title)
		assert.Equal(t, []string{model.PlaceholderTag}, m.Tags)
	}

	w = e.do(e.admin(multipartRequest(t, http.MethodPost, "/api/admin/memes/bulk", nil, "images", nil)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, 0)
	e.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))

	w := e.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `memeboard_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&model.ValidationError{Field: "title", Message: "x"}, http.StatusBadRequest},
		{media.ErrRecordNotFound, http.StatusNotFound},
		{store.ErrLocked, http.StatusLocked},
		{media.ErrAssetUploadFailed, http.StatusBadGateway},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{media.ErrForbidden, http.StatusForbidden},
		{media.ErrRecordWriteFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := mapDomainError(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
