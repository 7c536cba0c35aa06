package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/metrics"
)

func testEvent() event.Event {
	return event.Event{
		ID:        "ev-1",
		Title:     "jazz NIGHT at the park",
		EventDate: "2025-06-01",
		Location:  "london",
	}
}

func TestBuildParams(t *testing.T) {
	ev := testEvent()
	p := BuildParams("meetEasy", "a@b.com", &ev)

	assert.Equal(t, "a@b.com", p.ToEmail)
	assert.Equal(t, "meetEasy", p.FromName)
	assert.Equal(t, "Registration Confirmation for jazz NIGHT at the park", p.Subject)
	assert.Equal(t, "Jazz Night At The Park", p.EventTitle)
	assert.Equal(t, "01/06/2025", p.EventDate)
	assert.Equal(t, "TBD", p.EventTime)
	assert.Equal(t, "London", p.EventLocation)
	assert.Equal(t, "No description provided.", p.EventDescription)
}

func TestBuildParams_Fallbacks(t *testing.T) {
	ev := event.Event{Title: "x", EventDate: "not-a-date", EventTime: "19:30", Description: "Bring snacks"}
	p := BuildParams("", "a@b.com", &ev)

	assert.Equal(t, "not-a-date", p.EventDate)
	assert.Equal(t, "19:30", p.EventTime)
	assert.Equal(t, "TBD", p.EventLocation)
	assert.Equal(t, "Bring snacks", p.EventDescription)
}

func enabledConfig(endpoint string) config.EmailConfig {
	return config.EmailConfig{
		Endpoint:   endpoint,
		ServiceID:  "svc",
		TemplateID: "tpl",
		UserID:     "user",
		FromName:   "meetEasy",
	}
}

func TestMailer_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	m := NewMailer(enabledConfig(srv.URL), srv.Client(), nil, nil)
	ev := testEvent()
	require.NoError(t, m.Send(context.Background(), "a@b.com", &ev))

	assert.Equal(t, "svc", got.ServiceID)
	assert.Equal(t, "tpl", got.TemplateID)
	assert.Equal(t, "user", got.UserID)
	assert.Equal(t, "Jazz Night At The Park", got.TemplateParams.EventTitle)
}

func TestMailer_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The user ID is invalid", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewMailer(enabledConfig(srv.URL), srv.Client(), nil, nil)
	ev := testEvent()
	err := m.Send(context.Background(), "a@b.com", &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestMailer_DispatchLogsFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := metrics.New()
	m := NewMailer(enabledConfig(srv.URL), srv.Client(), nil, reg)
	m.Dispatch("a@b.com", testEvent())
	m.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	n, err := testutil.GatherAndCount(reg.Registry(), "meeteasy_notify_emails_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMailer_DispatchSkippedWhenDisabled(t *testing.T) {
	m := NewMailer(config.EmailConfig{}, nil, nil, nil)
	m.Dispatch("a@b.com", testEvent())
	m.Wait()
}
