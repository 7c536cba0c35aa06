// Package notify sends registration confirmation emails through EmailJS.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sendTimeout   = 10 * time.Second
	displayLayout = "02/01/2006"
)

// Params is the EmailJS template parameter set for a confirmation.
type Params struct {
	ToEmail          string `json:"to_email"`
	FromName         string `json:"from_name"`
	Subject          string `json:"subject"`
	EventTitle       string `json:"event_title"`
	EventDate        string `json:"event_date"`
	EventTime        string `json:"event_time"`
	EventLocation    string `json:"event_location"`
	EventDescription string `json:"event_description"`
}

type sendRequest struct {
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	UserID         string `json:"user_id"`
	TemplateParams Params `json:"template_params"`
}

// BuildParams renders the template parameters for a registration email.
func BuildParams(fromName, to string, ev *event.Event) Params {
	title := cases.Title(language.English)

	date := ev.EventDate
	if d, err := time.Parse(event.DateLayout, ev.EventDate); err == nil {
		date = d.Format(displayLayout)
	}
	eventTime := ev.EventTime
	if eventTime == "" {
		eventTime = "TBD"
	}
	location := title.String(ev.Location)
	if location == "" {
		location = "TBD"
	}
	description := ev.Description
	if description == "" {
		description = "No description provided."
	}

	return Params{
		ToEmail:          to,
		FromName:         fromName,
		Subject:          "Registration Confirmation for " + ev.Title,
		EventTitle:       title.String(ev.Title),
		EventDate:        date,
		EventTime:        eventTime,
		EventLocation:    location,
		EventDescription: description,
	}
}

// Mailer sends confirmation emails. Sends run in the background and
// failures are logged, never returned to the registrant.
type Mailer struct {
	cfg     config.EmailConfig
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewMailer creates a mailer. A nil client uses http.DefaultClient.
func NewMailer(cfg config.EmailConfig, client *http.Client, logger *zap.Logger, m *metrics.Metrics) *Mailer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Mailer{cfg: cfg, client: client, logger: logging.OrNop(logger), metrics: m}
}

// Send posts a confirmation email synchronously.
func (m *Mailer) Send(ctx context.Context, to string, ev *event.Event) error {
	body, err := json.Marshal(sendRequest{
		ServiceID:      m.cfg.ServiceID,
		TemplateID:     m.cfg.TemplateID,
		UserID:         m.cfg.UserID,
		TemplateParams: BuildParams(m.cfg.FromName, to, ev),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Dispatch sends a confirmation email in the background.
func (m *Mailer) Dispatch(to string, ev event.Event) {
	if !m.cfg.Enabled() {
		m.logger.Debug("Email not configured, skipping confirmation", zap.String("event_id", ev.ID))
		m.metrics.ObserveEmail("skipped")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := m.Send(ctx, to, &ev); err != nil {
			m.logger.Error("Error sending email",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
			m.metrics.ObserveEmail("failed")
			return
		}
		m.logger.Info("Email sent successfully", zap.String("event_id", ev.ID))
		m.metrics.ObserveEmail("sent")
	}()
}

// Wait blocks until in-flight sends finish.
func (m *Mailer) Wait() {
	m.wg.Wait()
}
