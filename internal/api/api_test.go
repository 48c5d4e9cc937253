package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"bomstudio/internal/api"
	"bomstudio/internal/intake"
	"bomstudio/internal/services"
	"bomstudio/internal/store"
	"bomstudio/internal/testsupport"
	"bomstudio/internal/video"
	"bomstudio/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePipeline struct {
	store   store.Store
	retried []string
}

func (f *fakePipeline) Retry(ctx context.Context, id string) (*store.Video, error) {
	f.retried = append(f.retried, id)
	return f.store.GetVideo(ctx, id)
}

func (f *fakePipeline) Running() []string { return f.retried }

type fakeEnqueuer struct {
	requests []workflow.Request
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, req workflow.Request) (workflow.Submission, error) {
	f.requests = append(f.requests, req)
	return workflow.Submission{ClientID: "c1", ProjectID: "p1", VideoID: "v1"}, nil
}

type fixture struct {
	store    store.Store
	router   http.Handler
	pipeline *fakePipeline
	enqueuer *fakeEnqueuer
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	f := &fixture{store: s, pipeline: &fakePipeline{store: s}, enqueuer: &fakeEnqueuer{}}
	f.router = api.NewRouter(api.Deps{
		Store:    s,
		Videos:   video.NewService(s, nil, nil),
		Pipeline: f.pipeline,
		Intake:   intake.NewHandler(f.enqueuer, nil),
		APIToken: token,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t, "secret")
	rec := f.do(t, http.MethodGet, "/health", nil, map[string]string{api.RequestIDHeader: "req-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(api.RequestIDHeader) != "req-1" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get(api.RequestIDHeader))
	}
	rec = f.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get(api.RequestIDHeader) == "" {
		t.Fatalf("expected generated request id, got %d %q", rec.Code, rec.Header().Get(api.RequestIDHeader))
	}
}

func TestBearerAuth(t *testing.T) {
	f := newFixture(t, "secret")
	if rec := f.do(t, http.MethodGet, "/api/v1/clients", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/clients", nil, map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/clients", nil, map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	body := map[string]any{"eventType": "OTHER"}
	if rec := f.do(t, http.MethodPost, "/api/v1/webhooks/tally", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected webhook to bypass auth, got %d", rec.Code)
	}
}

func TestClientCRUDAndErrorMapping(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": "Acme", "email": "Owner@Acme.test"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decode[store.Client](t, rec)
	if created.Email != "owner@acme.test" || created.Package != store.PackageKickstart {
		t.Fatalf("unexpected client %#v", created)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": "Dup", "email": "owner@acme.test"}, nil)
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Kind != services.KindConflict {
		t.Fatalf("expected 409 conflict, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": "Bad", "email": "nope"}, nil)
	if rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Kind != services.KindValidation {
		t.Fatalf("expected 400 validation, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/clients/missing", nil, nil)
	if rec.Code != http.StatusNotFound || decode[errorBody](t, rec).Kind != services.KindNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPatch, "/api/v1/clients/"+created.ID, map[string]any{"package": "pro"}, nil)
	if rec.Code != http.StatusOK || decode[store.Client](t, rec).Package != store.PackagePro {
		t.Fatalf("expected package update, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/clients?limit=1&skip=0", nil, nil)
	if list := decode[[]store.Client](t, rec); len(list) != 1 {
		t.Fatalf("expected one client, got %d", len(list))
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/clients?limit=abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestVideoReviewFlow(t *testing.T) {
	f := newFixture(t, "")
	client, project, v := testsupport.SeedVideo(t, f.store)
	v.Formats = store.Formats{"vertical": "/renders/out.mp4"}
	testsupport.SetVideoStatus(t, f.store, v, store.VideoDraft)

	path := "/api/v1/videos/" + v.ID
	if rec := f.do(t, http.MethodPost, path+"/submit", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without client header, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, path+"/submit", nil, map[string]string{api.ClientIDHeader: "stranger"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, path+"/submit", nil, map[string]string{api.ClientIDHeader: client.ID})
	if rec.Code != http.StatusOK || decode[store.Video](t, rec).Status != store.VideoReview {
		t.Fatalf("expected review, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, path+"/deliver", nil, nil)
	if rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Kind != services.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, path+"/approve", map[string]any{"note": "nice"}, nil)
	approved := decode[store.Video](t, rec)
	if rec.Code != http.StatusOK || approved.Status != store.VideoApproved || approved.ApprovalNote == nil || *approved.ApprovalNote != "nice" {
		t.Fatalf("unexpected approve response %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, path+"/deliver", nil, nil)
	delivered := decode[store.Video](t, rec)
	if rec.Code != http.StatusOK || delivered.Status != store.VideoDelivered || *delivered.DeliveryURL != "/renders/out.mp4" {
		t.Fatalf("unexpected deliver response %d: %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/projects/"+project.ID, nil, nil)
	if decode[store.Project](t, rec).Status != store.ProjectDelivered {
		t.Fatalf("expected project delivered: %s", rec.Body)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/videos?status=delivered", nil, nil)
	if list := decode[[]store.Video](t, rec); len(list) != 1 {
		t.Fatalf("expected one delivered video, got %d", len(list))
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/videos?status=bogus", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestLegacyApproveRejects(t *testing.T) {
	f := newFixture(t, "")
	_, _, v := testsupport.SeedVideo(t, f.store)
	v.Formats = store.Formats{"vertical": "/renders/out.mp4"}
	testsupport.SetVideoStatus(t, f.store, v, store.VideoReview)

	rec := f.do(t, http.MethodPost, "/api/v1/videos/"+v.ID+"/approve", map[string]any{"approved": false, "note": "redo"}, nil)
	got := decode[store.Video](t, rec)
	if rec.Code != http.StatusOK || got.Status != store.VideoDraft || *got.ApprovalNote != "redo" {
		t.Fatalf("expected rejection to draft, got %d: %s", rec.Code, rec.Body)
	}
}

func TestApproveAcceptsChunkedEmptyBody(t *testing.T) {
	f := newFixture(t, "")
	_, _, v := testsupport.SeedVideo(t, f.store)
	v.Formats = store.Formats{"vertical": "/renders/out.mp4"}
	testsupport.SetVideoStatus(t, f.store, v, store.VideoReview)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+v.ID+"/approve", io.NopCloser(strings.NewReader("")))
	req.Header.Set("Content-Type", "application/json")
	if req.ContentLength != -1 {
		t.Fatalf("expected unknown content length, got %d", req.ContentLength)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || decode[store.Video](t, rec).Status != store.VideoApproved {
		t.Fatalf("expected approval, got %d: %s", rec.Code, rec.Body)
	}
}

func TestRetryAndAssets(t *testing.T) {
	f := newFixture(t, "")
	_, _, v := testsupport.SeedVideo(t, f.store)
	asset := &store.Asset{VideoID: v.ID, Type: store.AssetImage, URL: "https://img/1.png"}
	if err := f.store.CreateAssets(context.Background(), []*store.Asset{asset}); err != nil {
		t.Fatalf("CreateAssets: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/videos/"+v.ID+"/retry", nil, nil)
	if rec.Code != http.StatusAccepted || len(f.pipeline.retried) != 1 {
		t.Fatalf("expected retry accepted, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/videos/"+v.ID+"/assets", nil, nil)
	if list := decode[[]store.Asset](t, rec); len(list) != 1 || list[0].URL != "https://img/1.png" {
		t.Fatalf("unexpected assets %s", rec.Body)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected asset, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/videos/missing/assets", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing video, got %d", rec.Code)
	}
}

func TestUsageTotals(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	err := f.store.AppendUsage(ctx,
		&store.UsageRecord{Provider: "openai", Action: "script", CostCents: 2},
		&store.UsageRecord{Provider: "replicate", Action: "image", CostCents: 3},
	)
	if err != nil {
		t.Fatalf("AppendUsage: %v", err)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/usage", nil, nil)
	body := decode[struct {
		Records    []store.UsageRecord `json:"records"`
		TotalCents int                 `json:"total_cents"`
	}](t, rec)
	if len(body.Records) != 2 || body.TotalCents != 5 {
		t.Fatalf("unexpected usage %s", rec.Body)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/usage?provider=replicate", nil, nil)
	if decode[struct {
		TotalCents int `json:"total_cents"`
	}](t, rec).TotalCents != 3 {
		t.Fatalf("unexpected filtered usage %s", rec.Body)
	}
}

func TestWebhooks(t *testing.T) {
	f := newFixture(t, "")
	submission := map[string]any{
		"eventId":   "evt-1",
		"eventType": intake.FormResponse,
		"data": map[string]any{"fields": []map[string]any{
			{"key": "email", "label": "Email", "value": "a@b.com"},
			{"key": "business_name", "label": "Business name", "value": "Acme"},
		}},
	}
	rec := f.do(t, http.MethodPost, "/api/v1/webhooks/tally", submission, nil)
	resp := decode[intake.Response](t, rec)
	if rec.Code != http.StatusOK || resp.Status != "accepted" || resp.VideoID != "v1" {
		t.Fatalf("unexpected tally response %d: %s", rec.Code, rec.Body)
	}
	if len(f.enqueuer.requests) != 1 || f.enqueuer.requests[0].Email != "a@b.com" {
		t.Fatalf("unexpected enqueued requests %#v", f.enqueuer.requests)
	}

	missing := map[string]any{"eventType": intake.FormResponse, "fields": []map[string]any{{"key": "name", "value": "x"}}}
	rec = f.do(t, http.MethodPost, "/api/v1/webhooks/tally", missing, nil)
	if rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Error != "Email field required" {
		t.Fatalf("expected 400 email required, got %d: %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/webhooks/stripe", map[string]any{"type": "checkout.session.completed"}, nil)
	if got := decode[map[string]string](t, rec); got["status"] != "received" || got["event_type"] != "checkout.session.completed" {
		t.Fatalf("unexpected stripe response %s", rec.Body)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/webhooks/n8n", map[string]any{"event": "ping"}, nil)
	if got := decode[map[string]string](t, rec); got["status"] != "received" || got["event"] != "ping" {
		t.Fatalf("unexpected n8n response %s", rec.Body)
	}
}

func TestStatusForKind(t *testing.T) {
	cases := map[string]int{
		services.KindValidation:        http.StatusBadRequest,
		services.KindInvalidTransition: http.StatusBadRequest,
		services.KindNotFound:          http.StatusNotFound,
		services.KindConflict:          http.StatusConflict,
		services.KindGeneration:        http.StatusInternalServerError,
		services.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := api.StatusForKind(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
