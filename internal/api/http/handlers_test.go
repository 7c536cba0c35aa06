package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aabubakar17/meetEasy/internal/calendar"
	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/featured"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/observability"
	"github.com/aabubakar17/meetEasy/internal/payment"
	"github.com/aabubakar17/meetEasy/internal/registration"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/source"
	"github.com/aabubakar17/meetEasy/internal/storage"
	"github.com/aabubakar17/meetEasy/internal/store"
)

type fakeTicketing struct {
	keyword source.Result[event.External]
	detail  map[string]*event.External
	down    bool
}

func (f *fakeTicketing) SearchByKeyword(context.Context, string, string, int) source.Result[event.External] {
	if f.keyword.Items == nil {
		return source.OK([]event.External{})
	}
	return f.keyword
}

func (f *fakeTicketing) SearchByClassification(context.Context, string, int, int) source.Result[event.External] {
	return source.OK([]event.External{{ID: "tm-music", Name: "Gig"}})
}

func (f *fakeTicketing) MaxRetries() int { return 3 }

func (f *fakeTicketing) FetchByID(_ context.Context, id string) source.Item[event.External] {
	if f.down {
		return source.FailItem[event.External](source.StatusUnavailable, errors.New("breaker open"))
	}
	if ev, ok := f.detail[id]; ok {
		return source.Found(ev)
	}
	return source.Missing[event.External]()
}

type fakeIntents struct {
	err    error
	status string
}

func (f *fakeIntents) CreateIntent(_ context.Context, amount int64, _ string, _ map[string]string) (payment.Intent, error) {
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (f *fakeIntents) IntentStatus(_ context.Context, _ string) (string, error) {
	if f.status == "" {
		return payment.StatusSucceeded, nil
	}
	return f.status, nil
}

type testEnv struct {
	handler http.Handler
	store   *store.SQLStore
	ext     *fakeTicketing
	intents *fakeIntents
	stats   *observability.SearchStats
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	images := storage.NewImages(local, "/")

	cfg := config.DefaultConfig()
	builder, err := calendar.NewBuilder(cfg.Calendar)
	require.NoError(t, err)

	ext := &fakeTicketing{detail: map[string]*event.External{
		"tm-1": {ID: "tm-1", Name: "Jazz at the Barbican"},
	}}
	stats := observability.NewSearchStats(cfg.Search.StatsWindow)
	svc := search.NewService(ext, search.NewLocalSource(st, 2, nil), search.WithRecorder(stats))
	intents := &fakeIntents{}
	payments := payment.NewService(intents, "gbp", nil)
	reg := registration.NewService(st, payments, nil, nil)

	carousel := featured.New(ext, config.FeaturedConfig{Classifications: []string{"music"}, PerClass: 1}, nil, nil)
	require.NoError(t, carousel.Refresh(context.Background()))

	h := NewAPIRouter(APIDeps{
		Search:       svc,
		External:     ext,
		Store:        st,
		Images:       images,
		MaxUploadMB:  1,
		Registration: reg,
		Calendar:     builder,
		Google:       calendar.NewGoogle("http://127.0.0.1:0", nil, builder),
		Featured:     carousel,
		Stats:        stats,
		Health:       st,
		Metrics:      metrics.New(),
	})
	return &testEnv{handler: h, store: st, ext: ext, intents: intents, stats: stats}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newEventBody() EventInput {
	return EventInput{
		Title:       "Jazz Jam Session",
		Location:    "London",
		EventDate:   "2025-06-01",
		EventTime:   "19:30",
		Category:    "Music",
		TicketTypes: []event.TicketType{{Name: "General", Price: 0}, {Name: "VIP", Price: 1500}},
	}
}

func TestSearch_RequiresAFilter(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_QUERY", decode[ErrorResponse](t, rec).Code)
}

func TestSearch_InvalidSize(t *testing.T) {
	env := newTestEnv(t)

	for _, size := range []string{"abc", "0", "201"} {
		rec := env.do(t, http.MethodGet, "/v1/search?keyword=jazz&size="+size, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "size %s", size)
		assert.Equal(t, "INVALID_SIZE", decode[ErrorResponse](t, rec).Code, "size %s", size)
	}
}

func TestSearch_MergesBothSources(t *testing.T) {
	env := newTestEnv(t)
	env.ext.keyword = source.OK([]event.External{{ID: "tm-1", Name: "Jazz at the Barbican"}})

	created := env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody())
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	rec := env.do(t, http.MethodGet, "/v1/search?keyword=jazz&location=london", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SearchResponse](t, rec)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, search.SourceInternal, resp.Results[0].Source)
	assert.Equal(t, search.SourceExternal, resp.Results[1].Source)
	assert.Equal(t, source.StatusOK, resp.Sources[search.SourceExternal])
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-ID"))

	pop := env.do(t, http.MethodGet, "/v1/search/popular?kind=keyword", "", nil)
	require.Equal(t, http.StatusOK, pop.Code)
	terms := decode[PopularResponse](t, pop).Terms
	require.Len(t, terms, 1)
	assert.Equal(t, "jazz", terms[0].Term)
}

func TestPopular_RejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/search/popular?kind=venue", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeatured(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/featured", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[featured.Snapshot](t, rec)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "tm-music", snap.Events[0].ID)
}

func TestExternalEvent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/external/events/tm-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jazz at the Barbican", decode[event.External](t, rec).Name)

	rec = env.do(t, http.MethodGet, "/v1/external/events/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.ext.down = true
	rec = env.do(t, http.MethodGet, "/v1/external/events/tm-1", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEvents_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/events", "", newEventBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[event.Event](t, rec)
	assert.Equal(t, "london", ev.Location)
	assert.Equal(t, []string{"jazz", "jam", "session"}, ev.TitleKeywords)

	rec = env.do(t, http.MethodGet, "/v1/events/"+ev.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	edit := newEventBody()
	edit.Title = "Blues Night"
	rec = env.do(t, http.MethodPut, "/v1/events/"+ev.ID, "intruder", edit)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/events/"+ev.ID, "u1", edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"blues", "night"}, decode[event.Event](t, rec).TitleKeywords)

	rec = env.do(t, http.MethodGet, "/v1/me/events", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[EventsResponse](t, rec).Events, 1)

	rec = env.do(t, http.MethodDelete, "/v1/events/"+ev.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/events/"+ev.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	body := newEventBody()
	body.EventDate = "01/06/2025"

	rec := env.do(t, http.MethodPost, "/v1/events", "u1", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_EVENT", decode[ErrorResponse](t, rec).Code)
}

func multipartImage(t *testing.T, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="poster.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestEvents_ImageUploadAndServe(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody())
	ev := decode[event.Event](t, rec)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	body, ct := multipartImage(t, "image/png", png)
	req := httptest.NewRequest(http.MethodPut, "/v1/events/"+ev.ID+"/image", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[event.Event](t, rec)
	require.True(t, strings.HasPrefix(updated.ImageURL, "/images/poster.png"), updated.ImageURL)

	img := env.do(t, http.MethodGet, updated.ImageURL, "", nil)
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, png, img.Body.Bytes())

	// replacing the image deletes the previous object
	body, ct = multipartImage(t, "image/png", png)
	req = httptest.NewRequest(http.MethodPut, "/v1/events/"+ev.ID+"/image", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	old := env.do(t, http.MethodGet, updated.ImageURL, "", nil)
	assert.Equal(t, http.StatusNotFound, old.Code)
}

func TestEvents_UpdateWithoutImageKeepsImage(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	body, ct := multipartImage(t, "image/png", png)
	req := httptest.NewRequest(http.MethodPut, "/v1/events/"+ev.ID+"/image", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withImage := decode[event.Event](t, rec)

	in := newEventBody()
	in.Title = "Jazz Night (moved)"
	rec = env.do(t, http.MethodPut, "/v1/events/"+ev.ID, "u1", in)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[event.Event](t, rec)
	assert.Equal(t, "Jazz Night (moved)", updated.Title)
	assert.Equal(t, withImage.ImageURL, updated.ImageURL)

	img := env.do(t, http.MethodGet, withImage.ImageURL, "", nil)
	assert.Equal(t, http.StatusOK, img.Code)

	// an explicit empty imageUrl clears the image and removes the object
	empty := ""
	in.ImageURL = &empty
	rec = env.do(t, http.MethodPut, "/v1/events/"+ev.ID, "u1", in)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[event.Event](t, rec).ImageURL)

	img = env.do(t, http.MethodGet, withImage.ImageURL, "", nil)
	assert.Equal(t, http.StatusNotFound, img.Code)
}

func TestEvents_ImageRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	body, ct := multipartImage(t, "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPut, "/v1/events/"+ev.ID+"/image", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistration_PaidFlow(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	rec := env.do(t, http.MethodPost, "/v1/events/"+ev.ID+"/registrations", "u2", map[string]interface{}{
		"email": "guest@example.com", "ticketType": "VIP", "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[registration.Outcome](t, rec)
	assert.Equal(t, "pi_1_secret", out.ClientSecret)
	assert.Equal(t, int64(3000), out.Attendee.Amount)
	assert.Equal(t, "u2", out.Attendee.UserID)

	rec = env.do(t, http.MethodPost, "/v1/registrations/"+out.Attendee.ID+"/confirm", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, event.AttendeeConfirmed, decode[event.Attendee](t, rec).Status)

	got, err := env.store.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TicketsSold)
}

func TestRegistration_ConfirmRequiresSucceededPayment(t *testing.T) {
	env := newTestEnv(t)
	env.intents.status = "requires_payment_method"
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	rec := env.do(t, http.MethodPost, "/v1/events/"+ev.ID+"/registrations", "u2", map[string]interface{}{
		"email": "guest@example.com", "ticketType": "VIP", "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[registration.Outcome](t, rec)

	rec = env.do(t, http.MethodPost, "/v1/registrations/"+out.Attendee.ID+"/confirm", "", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, apperrors.CodePaymentIncomplete, decode[ErrorResponse](t, rec).Code)

	att, err := env.store.GetAttendee(context.Background(), out.Attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, event.AttendeePending, att.Status)

	got, err := env.store.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TicketsSold)
}

func TestRegistration_QuantityOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	rec := env.do(t, http.MethodPost, "/v1/events/"+ev.ID+"/registrations", "", map[string]interface{}{
		"email": "guest@example.com", "ticketType": "General", "quantity": 6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decode[ErrorResponse](t, rec).Code)
}

func TestCalendar_ICS(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	rec := env.do(t, http.MethodGet, "/v1/events/"+ev.ID+"/calendar.ics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Jazz Jam Session")
}

func TestCalendar_GoogleRequiresBearer(t *testing.T) {
	env := newTestEnv(t)
	ev := decode[event.Event](t, env.do(t, http.MethodPost, "/v1/events", "u1", newEventBody()))

	rec := env.do(t, http.MethodPost, "/v1/events/"+ev.ID+"/calendar", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.do(t, http.MethodGet, "/v1/search?keyword=jazz", "", nil)
	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `meeteasy_http_requests_total{code="200",route="GET /v1/search"}`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/v1/events", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPaymentsRouter(t *testing.T) {
	intents := &fakeIntents{}
	h := NewPaymentsRouter(payment.NewService(intents, "gbp", nil), nil, nil, nil)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-payment-intent", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"amount": 2500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientSecret":"pi_1_secret"}`, rec.Body.String())

	for _, body := range []string{`{"amount": 0}`, `{"amount": -5}`, `not json`, ``} {
		rec = post(body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, "body %q", body)
		assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error, "body %q", body)
	}

	intents.err = errors.New("Your card was declined.")
	rec = post(`{"amount": 2500}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Your card was declined.", decode[ErrorResponse](t, rec).Error)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
