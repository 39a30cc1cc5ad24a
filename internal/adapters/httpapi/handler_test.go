package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"buildcore/internal/blob"
	"buildcore/internal/core"
	"buildcore/internal/dashboard"
	"buildcore/internal/infra/persistence/memory"
	"buildcore/internal/media"
	"buildcore/internal/notify"
	"buildcore/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const adminToken = "s3cret"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, notify.Message) error { return errors.New("smtp down") }

type env struct {
	server *httptest.Server
	svc    *core.Service
	logs   *observer.ObservedLogs
}

func newEnv(t *testing.T, opts ...Option) env {
	t.Helper()
	return newEnvWithNotifier(t, nil, opts...)
}

func newEnvWithNotifier(t *testing.T, n notify.Notifier, opts ...Option) env {
	t.Helper()
	obs, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obs)
	blobs := blob.NewMemory("http://media.test/media")
	adapter := media.NewAdapter(blobs, media.Config{MaxBytes: 4096})
	svcOpts := []core.ServiceOption{core.WithMedia(adapter), core.WithLogger(logger)}
	if n != nil {
		svcOpts = append(svcOpts, core.WithNotifier(n))
	}
	svc := core.NewService(memory.NewStore(), svcOpts...)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "buildcore_test_total", Help: "test"}))
	all := append([]Option{
		WithLogger(logger),
		WithAdminToken(adminToken),
		WithMedia(adapter),
		WithDashboard(dashboard.NewAggregator(svc)),
		WithMetrics(reg),
	}, opts...)
	srv := httptest.NewServer(NewHandler(svc, all...))
	t.Cleanup(srv.Close)
	return env{server: srv, svc: svc, logs: logs}
}

func (e env) do(t *testing.T, method, path string, body io.Reader, contentType string, admin bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestListEmptyKindReturnsEmptyArray(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/resources/services", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"services": []}`, string(raw))
}

func TestListUnknownKind(t *testing.T) {
	e := newEnv(t)
	for _, kind := range []string{"blog", "messages"} {
		resp := e.do(t, http.MethodGet, "/resources/"+kind, nil, "", false)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, kind)
	}
}

func TestCreateMultipartWithImage(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, map[string]string{"title": "Roofing", "desc": "Full replacement", "icon": "hammer"}, pngBytes)
	resp := e.do(t, http.MethodPost, "/resources/services", body, ct, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.Resource](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Full replacement", created.Description)
	require.NotNil(t, created.Image)
	assert.True(t, strings.HasPrefix(*created.Image, "http://media.test/media/service/"))

	key := strings.TrimPrefix(*created.Image, "http://media.test/media/")
	img := e.do(t, http.MethodGet, "/media/"+key, nil, "", false)
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	got, _ := io.ReadAll(img.Body)
	assert.Equal(t, pngBytes, got)

	list := e.do(t, http.MethodGet, "/resources/service", nil, "", false)
	payload := decode[map[string][]domain.Resource](t, list)
	require.Len(t, payload["services"], 1)
	assert.Equal(t, created.ID, payload["services"][0].ID)
}

func TestCreateRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, map[string]string{"title": "x", "description": "y"}, nil)
	resp := e.do(t, http.MethodPost, "/resources/services", body, ct, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	list := decode[map[string][]domain.Resource](t, e.do(t, http.MethodGet, "/resources/services", nil, "", false))
	assert.Empty(t, list["services"])
}

func TestCreateValidationError(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, map[string]string{"title": "Villa"}, pngBytes)
	resp := e.do(t, http.MethodPost, "/resources/projects", body, ct, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decode[map[string]any](t, resp)
	assert.Equal(t, []any{"description"}, payload["missing"])
}

func TestCreateUnsupportedImage(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, map[string]string{"title": "a", "description": "b"}, []byte("just some text"))
	resp := e.do(t, http.MethodPost, "/resources/services", body, ct, true)
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	payload := decode[map[string]any](t, resp)
	assert.Equal(t, string(domain.UploadUnsupported), payload["reason"])
}

func TestCreateImageTooLarge(t *testing.T) {
	e := newEnv(t)
	big := append(append([]byte{}, pngBytes...), make([]byte, 8192)...)
	body, ct := multipartBody(t, map[string]string{"title": "a", "description": "b"}, big)
	resp := e.do(t, http.MethodPost, "/resources/services", body, ct, true)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestCreateFromJSON(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/resources/testimonials", strings.NewReader(`{"name":"Ann","feedback":"Great work","rating":5}`), "application/json", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.Resource](t, resp)
	assert.Equal(t, 5, created.Rating)
	assert.Nil(t, created.Image)

	bad := e.do(t, http.MethodPost, "/resources/testimonials", strings.NewReader(`{"name":"Ann","feedback":"x","rating":true}`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestUpdateAndDelete(t *testing.T) {
	e := newEnv(t)
	created, err := e.svc.Create(context.Background(), domain.KindProject, core.Fields{"title": "Villa A", "description": "d", "location": "Nairobi"}, nil)
	require.NoError(t, err)

	body, ct := multipartBody(t, map[string]string{"title": "Villa B"}, pngBytes)
	resp := e.do(t, http.MethodPut, "/resources/projects/"+created.ID, body, ct, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Resource](t, resp)
	assert.Equal(t, "Villa B", updated.Title)
	assert.Equal(t, "Nairobi", updated.Location)
	require.NotNil(t, updated.Image)

	missing, ct := multipartBody(t, map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPut, "/resources/projects/nope", missing, ct, true).StatusCode)

	del := e.do(t, http.MethodDelete, "/resources/projects/"+created.ID, nil, "", true)
	require.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, del))
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/resources/projects/"+created.ID, nil, "", true).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/resources/projects/"+created.ID, nil, "", false).StatusCode)
}

func TestListRecentWithLimit(t *testing.T) {
	e := newEnv(t)
	for _, title := range []string{"a", "b", "c"} {
		_, err := e.svc.Create(context.Background(), domain.KindService, core.Fields{"title": title, "description": "d"}, nil)
		require.NoError(t, err)
	}
	resp := e.do(t, http.MethodGet, "/resources/services?sort=recent&limit=2", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[map[string][]domain.Resource](t, resp)
	require.Len(t, payload["services"], 2)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/resources/services?limit=-1", nil, "", false).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/resources/services?sort=random", nil, "", false).StatusCode)
}

func TestContactSubmitAndList(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/contact", strings.NewReader(`{"name":"Sam","email":"sam@example.com","message":"Need a quote"}`), "application/json", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contactResponse{Success: true}, decode[contactResponse](t, resp))

	invalid := e.do(t, http.MethodPost, "/contact", strings.NewReader(`{"name":"Sam","email":"nope"}`), "application/json", false)
	require.Equal(t, http.StatusBadRequest, invalid.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/contact", nil, "", false).StatusCode)
	list := e.do(t, http.MethodGet, "/contact", nil, "", true)
	require.Equal(t, http.StatusOK, list.StatusCode)
	payload := decode[map[string][]domain.ContactMessage](t, list)
	require.Len(t, payload["messages"], 1)
	assert.Equal(t, "Sam", payload["messages"][0].Name)
}

func TestContactNotificationFailureStillSucceeds(t *testing.T) {
	e := newEnvWithNotifier(t, failingNotifier{})
	resp := e.do(t, http.MethodPost, "/contact", strings.NewReader(`{"name":"Sam","email":"sam@example.com","message":"hi"}`), "application/json", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[contactResponse](t, resp)
	assert.True(t, payload.Success)
	assert.Contains(t, payload.Message, "notification could not be sent")
}

func TestContactRateLimited(t *testing.T) {
	e := newEnv(t, WithContactRateLimit(1, 2))
	body := `{"name":"Sam","email":"sam@example.com","message":"hi"}`
	for i := 0; i < 2; i++ {
		resp := e.do(t, http.MethodPost, "/contact", strings.NewReader(body), "application/json", false)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := e.do(t, http.MethodPost, "/contact", strings.NewReader(body), "application/json", false)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestStandaloneUpload(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, map[string]string{"kind": "projects"}, pngBytes)
	resp := e.do(t, http.MethodPost, "/media", body, ct, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := decode[map[string]string](t, resp)
	assert.True(t, strings.HasPrefix(payload["url"], "http://media.test/media/project/"))

	noImage, ct := multipartBody(t, nil, nil)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/media", noImage, ct, true).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/media/project/missing.png", nil, "", false).StatusCode)
}

func TestMediaRejectedKeysAreNotFound(t *testing.T) {
	blobs, err := blob.NewFilesystem(t.TempDir(), "http://media.test/media")
	require.NoError(t, err)
	e := newEnv(t, WithMedia(media.NewAdapter(blobs, media.Config{})))
	for _, key := range []string{"service/roof.png.meta", "service/..roof.png"} {
		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/media/"+key, nil, "", false).StatusCode, key)
	}
	assert.Zero(t, e.logs.FilterMessage("request failed").Len())
}

// uploadCapture reads each image it is handed and keeps its body.
type uploadCapture struct {
	Service
	bodies []io.Reader
}

func (c *uploadCapture) Create(_ context.Context, kind domain.Kind, _ core.Fields, image *media.Upload) (domain.Resource, error) {
	c.keep(image)
	return domain.Resource{ID: "r1", Kind: kind}, nil
}

func (c *uploadCapture) Update(_ context.Context, kind domain.Kind, id string, _ core.Fields, image *media.Upload) (domain.Resource, error) {
	c.keep(image)
	return domain.Resource{ID: id, Kind: kind}, nil
}

func (c *uploadCapture) keep(image *media.Upload) {
	if image != nil {
		_, _ = io.Copy(io.Discard, image.Body)
		c.bodies = append(c.bodies, image.Body)
	}
}

func TestResourceUploadsAreClosed(t *testing.T) {
	capture := &uploadCapture{}
	srv := httptest.NewServer(NewHandler(capture, WithAdminToken(adminToken)))
	t.Cleanup(srv.Close)
	e := env{server: srv}

	// larger than the in-memory multipart allowance so the part is file-backed
	large := append(append([]byte(nil), pngBytes...), bytes.Repeat([]byte{0}, formOverhead+512)...)
	body, ct := multipartBody(t, map[string]string{"title": "Roofing"}, large)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/resources/services", body, ct, true).StatusCode)
	body, ct = multipartBody(t, map[string]string{"title": "Roofing"}, large)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/resources/services/r1", body, ct, true).StatusCode)

	require.Len(t, capture.bodies, 2)
	for _, b := range capture.bodies {
		_, err := b.Read(make([]byte, 1))
		assert.ErrorIs(t, err, os.ErrClosed)
	}
}

func TestDashboardCounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.Create(ctx, domain.KindService, core.Fields{"title": "a", "description": "b"}, nil)
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, domain.KindTeam, core.Fields{"name": "Jane"}, nil)
	require.NoError(t, err)

	resp := e.do(t, http.MethodGet, "/dashboard", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[map[string]map[string]int](t, resp)
	assert.Equal(t, map[string]int{"services": 1, "projects": 0, "team": 1, "messages": 0}, payload["counts"])
}

type brokenCollector struct{}

func (brokenCollector) Collect(context.Context) (dashboard.Summary, error) {
	return dashboard.Summary{}, domain.AggregateFetchError{Failures: map[domain.Kind]error{domain.KindTeam: errors.New("timeout")}}
}

func TestDashboardFailureIsBadGateway(t *testing.T) {
	e := newEnv(t, WithDashboard(brokenCollector{}))
	resp := e.do(t, http.MethodGet, "/dashboard", nil, "", true)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	payload := decode[map[string]any](t, resp)
	assert.Equal(t, []any{"team"}, payload["failed"])
}

func TestHealthMetricsAndLogging(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metrics := e.do(t, http.MethodGet, "/metrics", nil, "", false)
	require.Equal(t, http.StatusOK, metrics.StatusCode)
	raw, _ := io.ReadAll(metrics.Body)
	assert.Contains(t, string(raw), "buildcore_test_total")

	entries := e.logs.FilterMessage("http request").All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "/healthz", entries[0].ContextMap()["path"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/nowhere", nil, "", false).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodPatch, "/healthz", nil, "", false).StatusCode)
}
