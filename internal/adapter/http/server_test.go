package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	httpadapter "github.com/couchcryptid/colorbar-timeseries/internal/adapter/http"
	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
	"github.com/couchcryptid/colorbar-timeseries/internal/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockService struct {
	mu        sync.Mutex
	readyErr  error
	active    string
	switchErr error
	genErr    error
	prefetch  []string
	window    imagestore.Window
	result    *domain.TimeSeriesResult
	point     domain.PointValue
	pointErr  error
	lastPoint domain.SamplePoint
}

func (m *mockService) CheckReadiness(_ context.Context) error { return m.readyErr }
func (m *mockService) Domain() string                         { return m.active }
func (m *mockService) Domains() []string                      { return []string{"d01", "d02"} }

func (m *mockService) SwitchDomain(name string) error {
	if m.switchErr != nil {
		return m.switchErr
	}
	m.active = name
	return nil
}

func (m *mockService) Prefetch(variable string, window imagestore.Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetch = append(m.prefetch, variable)
	m.window = window
	return nil
}

func (m *mockService) Generate(_ context.Context, _ domain.TimeSeriesRequest, progress timeseries.ProgressFunc) (*domain.TimeSeriesResult, error) {
	if progress != nil {
		progress(0)
		progress(0.5)
		progress(1)
	}
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.result, nil
}

func (m *mockService) ValueAt(_ context.Context, _ string, _ time.Time, p domain.SamplePoint) (domain.PointValue, error) {
	m.lastPoint = p
	return m.point, m.pointErr
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*domain.TimeSeriesResult
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, r *domain.TimeSeriesResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, r)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResult() *domain.TimeSeriesResult {
	v := 42.0
	t0 := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	return &domain.TimeSeriesResult{
		Domain:     "d01",
		Variable:   "T2",
		Timestamps: []time.Time{t0, t0.Add(time.Hour)},
		Series: []domain.PointSeries{{
			Point:  domain.SamplePoint{X: 0.5, Y: 0.5, Label: "a"},
			Values: []*float64{&v, nil},
		}},
	}
}

func newTestServer(svc *mockService, pub httpadapter.Publisher) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, pub, discardLogger())
}

func do(srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

const seriesBody = `{"variable":"T2","start":"2024-05-01T00:00:00Z","end":"2024-05-01T01:00:00Z","points":[{"x":0.5,"y":0.5,"label":"a"}]}`

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(&mockService{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(newTestServer(&mockService{}, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(newTestServer(&mockService{readyErr: domain.ErrNoActiveDomain}, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(&mockService{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- domains ---

func TestSwitchDomain(t *testing.T) {
	svc := &mockService{}
	rec := do(newTestServer(svc, nil), http.MethodPut, "/domain", `{"domain":"d02"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Active  string   `json:"active"`
		Domains []string `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "d02", body.Active)
	assert.Equal(t, []string{"d01", "d02"}, body.Domains)
}

func TestSwitchDomain_Unknown(t *testing.T) {
	svc := &mockService{switchErr: fmt.Errorf("%w: d99", catalog.ErrUnknownDomain)}
	rec := do(newTestServer(svc, nil), http.MethodPut, "/domain", `{"domain":"d99"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSwitchDomain_BadBody(t *testing.T) {
	rec := do(newTestServer(&mockService{}, nil), http.MethodPut, "/domain", `{"name":"d02"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDomains(t *testing.T) {
	rec := do(newTestServer(&mockService{active: "d01"}, nil), http.MethodGet, "/domains", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active":"d01","domains":["d01","d02"]}`, rec.Body.String())
}

// --- prefetch ---

func TestPrefetchAccepted(t *testing.T) {
	svc := &mockService{}
	rec := do(newTestServer(svc, nil), http.MethodPost, "/prefetch",
		`{"variable":"T2","start":"2024-05-01T00:00:00Z","end":"2024-05-01T03:00:00Z"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"T2"}, svc.prefetch)
	assert.Equal(t, time.Date(2024, time.May, 1, 3, 0, 0, 0, time.UTC), svc.window.End)
}

func TestPrefetchRequiresVariable(t *testing.T) {
	rec := do(newTestServer(&mockService{}, nil), http.MethodPost, "/prefetch", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- timeseries ---

func TestTimeSeries(t *testing.T) {
	pub := &recordingPublisher{}
	rec := do(newTestServer(&mockService{result: sampleResult()}, pub), http.MethodPost, "/timeseries", seriesBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.TimeSeriesResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "T2", got.Variable)
	require.Len(t, got.Series, 1)
	assert.Equal(t, 42.0, *got.Series[0].Values[0])
	assert.Nil(t, got.Series[0].Values[1])
	assert.Equal(t, 1, pub.count())
}

func TestTimeSeries_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	rec := do(newTestServer(&mockService{result: sampleResult()}, pub), http.MethodPost, "/timeseries", seriesBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeSeries_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cancelled", domain.ErrCancelled, http.StatusConflict},
		{"invalid", fmt.Errorf("%w: no points", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"no domain", domain.ErrNoActiveDomain, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			rec := do(newTestServer(&mockService{genErr: tt.err}, pub), http.MethodPost, "/timeseries", seriesBody)
			assert.Equal(t, tt.want, rec.Code)
			assert.Zero(t, pub.count())
		})
	}
}

// --- export ---

func TestExportPNG(t *testing.T) {
	rec := do(newTestServer(&mockService{result: sampleResult()}, nil), http.MethodPost,
		"/timeseries/export?format=png&threshold=40", seriesBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "d01_T2.png")
	_, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)
}

func TestExportXLSX(t *testing.T) {
	rec := do(newTestServer(&mockService{result: sampleResult()}, nil), http.MethodPost,
		"/timeseries/export", seriesBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	rec := do(newTestServer(&mockService{result: sampleResult()}, nil), http.MethodPost,
		"/timeseries/export?format=csv", seriesBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- value ---

func TestValue(t *testing.T) {
	svc := &mockService{point: domain.PointValue{Color: domain.RGB{R: 255}, Value: 7}}
	rec := do(newTestServer(svc, nil), http.MethodGet,
		"/value?variable=T2&timestamp=2024-05-01_01:00:00&x=0.25&y=0.75", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SamplePoint{X: 0.25, Y: 0.75}, svc.lastPoint)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "255,0,0", got["color"])
	assert.Equal(t, 7.0, got["value"])
}

func TestValue_BadQuery(t *testing.T) {
	srv := newTestServer(&mockService{}, nil)
	for _, q := range []string{
		"/value?timestamp=2024-05-01_01:00:00&x=0&y=0",
		"/value?variable=T2&timestamp=yesterday&x=0&y=0",
		"/value?variable=T2&timestamp=2024-05-01_01:00:00&x=left&y=0",
	} {
		assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, q, "").Code, q)
	}
}

func TestValue_ImageLoadFailure(t *testing.T) {
	svc := &mockService{pointErr: &domain.ImageLoadError{URL: "t2.png", Err: errors.New("404")}}
	rec := do(newTestServer(svc, nil), http.MethodGet,
		"/value?variable=T2&timestamp=2024-05-01_01:00:00&x=0.5&y=0.5", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// --- stream ---

type frame struct {
	Type      string                   `json:"type"`
	Progress  float64                  `json:"progress"`
	Result    *domain.TimeSeriesResult `json:"result"`
	Error     string                   `json:"error"`
	Cancelled bool                     `json:"cancelled"`
}

func dialStream(t *testing.T, srv http.Handler) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/timeseries/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestStream_ProgressThenResult(t *testing.T) {
	pub := &recordingPublisher{}
	conn := dialStream(t, newTestServer(&mockService{result: sampleResult()}, pub))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(seriesBody)))
	frames := readFrames(t, conn)

	require.Len(t, frames, 4)
	assert.Equal(t, "progress", frames[0].Type)
	assert.Equal(t, 0.5, frames[1].Progress)
	assert.Equal(t, 1.0, frames[2].Progress)
	assert.Equal(t, "result", frames[3].Type)
	require.NotNil(t, frames[3].Result)
	assert.Equal(t, "T2", frames[3].Result.Variable)
	assert.Equal(t, 1, pub.count())
}

func TestStream_Cancelled(t *testing.T) {
	conn := dialStream(t, newTestServer(&mockService{genErr: domain.ErrCancelled}, nil))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(seriesBody)))
	frames := readFrames(t, conn)

	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last.Type)
	assert.True(t, last.Cancelled)
}

func TestStream_InvalidRequest(t *testing.T) {
	conn := dialStream(t, newTestServer(&mockService{}, nil))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frames := readFrames(t, conn)

	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Type)
}
