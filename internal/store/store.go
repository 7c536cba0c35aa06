package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventStore persists user-created events and registrations.
type EventStore interface {
	// Create inserts a new event, assigning an ID when empty.
	Create(ctx context.Context, ev *event.Event) error

	// Update rewrites the owner-editable fields and regenerates keywords.
	Update(ctx context.Context, ev *event.Event) error

	// Delete removes an event together with its keywords and attendees.
	Delete(ctx context.Context, id string) error

	// Get returns one event or a NOT_FOUND store error.
	Get(ctx context.Context, id string) (*event.Event, error)

	ListByOwner(ctx context.Context, userID string) ([]event.Event, error)

	// SearchByKeyword returns events whose keyword set contains token.
	SearchByKeyword(ctx context.Context, token string) ([]event.Event, error)

	// SearchByLocation matches the normalized location exactly.
	SearchByLocation(ctx context.Context, location string) ([]event.Event, error)

	SearchByCategory(ctx context.Context, category string) ([]event.Event, error)

	// ListAll is a full scan of every stored event.
	ListAll(ctx context.Context) ([]event.Event, error)

	// AddAttendee records a registration. Confirmed registrations also
	// increment the event's tickets sold.
	AddAttendee(ctx context.Context, a *event.Attendee) error

	GetAttendee(ctx context.Context, id string) (*event.Attendee, error)

	ListAttendees(ctx context.Context, eventID string) ([]event.Attendee, error)

	// ConfirmAttendee marks a pending registration confirmed and increments
	// tickets sold. Confirming twice is a no-op.
	ConfirmAttendee(ctx context.Context, id string) (*event.Attendee, error)

	Close() error
}

var eventColumnList = []string{
	"id", "user_id", "title", "description", "location", "venue", "category",
	"event_date", "event_time", "ticket_types", "image_url", "tickets_sold", "created_at", "updated_at",
}

var (
	eventColumns  = strings.Join(eventColumnList, ", ")
	eventColumnsE = "e." + strings.Join(eventColumnList, ", e.")
)

const attendeeColumns = `id, event_id, user_id, email, ticket_type, quantity, amount,
	payment_intent_id, status, created_at`

// SQLStore implements EventStore on database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex // serializes writers; readers don't take it
	now    func() time.Time
}

// Open connects to the database and initialises the schema.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health checks.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) q(query string) string {
	return rebind(s.driver, query)
}

// Create implements EventStore.
func (s *SQLStore) Create(ctx context.Context, ev *event.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Normalize()
	now := s.now().UTC().Truncate(time.Millisecond)
	ev.CreatedAt = now
	ev.UpdatedAt = now

	tickets, err := json.Marshal(ev.TicketTypes)
	if err != nil {
		return apperrors.NewInternalError("encode ticket types", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "create event", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			ev.ID, ev.UserID, ev.Title, ev.Description, ev.Location, ev.Venue, ev.Category,
			ev.EventDate, ev.EventTime, string(tickets), ev.ImageURL, ev.TicketsSold,
			now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return err
		}
		return s.writeKeywords(ctx, tx, ev.ID, ev.TitleKeywords)
	})
}

// Update implements EventStore. The owner, creation time and tickets sold
// are not editable.
func (s *SQLStore) Update(ctx context.Context, ev *event.Event) error {
	ev.Normalize()
	now := s.now().UTC().Truncate(time.Millisecond)
	ev.UpdatedAt = now

	tickets, err := json.Marshal(ev.TicketTypes)
	if err != nil {
		return apperrors.NewInternalError("encode ticket types", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "update event", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE events SET
			title = ?, description = ?, location = ?, venue = ?, category = ?,
			event_date = ?, event_time = ?, ticket_types = ?, image_url = ?, updated_at = ?
			WHERE id = ?`),
			ev.Title, ev.Description, ev.Location, ev.Venue, ev.Category,
			ev.EventDate, ev.EventTime, string(tickets), ev.ImageURL, now.UnixMilli(), ev.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM event_keywords WHERE event_id = ?`), ev.ID); err != nil {
			return err
		}
		return s.writeKeywords(ctx, tx, ev.ID, ev.TitleKeywords)
	})
}

func (s *SQLStore) writeKeywords(ctx context.Context, tx *sql.Tx, id string, keywords []string) error {
	stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO event_keywords (event_id, keyword, position) VALUES (?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, kw := range keywords {
		if _, err := stmt.ExecContext(ctx, id, kw, i); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements EventStore.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "delete event", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM event_keywords WHERE event_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM attendees WHERE event_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM events WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// Get implements EventStore.
func (s *SQLStore) Get(ctx context.Context, id string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, mapError("get event", err)
	}
	return ev, nil
}

// ListByOwner implements EventStore.
func (s *SQLStore) ListByOwner(ctx context.Context, userID string) ([]event.Event, error) {
	return s.queryEvents(ctx, "list events by owner",
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// SearchByKeyword implements EventStore.
func (s *SQLStore) SearchByKeyword(ctx context.Context, token string) ([]event.Event, error) {
	return s.queryEvents(ctx, "search by keyword",
		`SELECT `+eventColumnsE+`
		FROM events e JOIN event_keywords k ON k.event_id = e.id
		WHERE k.keyword = ? ORDER BY e.created_at, e.id`, token)
}

// SearchByLocation implements EventStore.
func (s *SQLStore) SearchByLocation(ctx context.Context, location string) ([]event.Event, error) {
	return s.queryEvents(ctx, "search by location",
		`SELECT `+eventColumns+` FROM events WHERE location = ? ORDER BY created_at, id`, location)
}

// SearchByCategory implements EventStore.
func (s *SQLStore) SearchByCategory(ctx context.Context, category string) ([]event.Event, error) {
	return s.queryEvents(ctx, "search by category",
		`SELECT `+eventColumns+` FROM events WHERE category = ? ORDER BY created_at, id`, category)
}

// ListAll implements EventStore.
func (s *SQLStore) ListAll(ctx context.Context) ([]event.Event, error) {
	return s.queryEvents(ctx, "list all events",
		`SELECT `+eventColumns+` FROM events ORDER BY created_at, id`)
}

func (s *SQLStore) queryEvents(ctx context.Context, op, query string, args ...interface{}) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	out := make([]event.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(sc scanner) (*event.Event, error) {
	var (
		ev                   event.Event
		tickets              string
		createdAt, updatedAt int64
	)
	err := sc.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.Description, &ev.Location, &ev.Venue,
		&ev.Category, &ev.EventDate, &ev.EventTime, &tickets, &ev.ImageURL, &ev.TicketsSold,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tickets), &ev.TicketTypes); err != nil {
		return nil, fmt.Errorf("decode ticket types of %s: %w", ev.ID, err)
	}
	if ev.TicketTypes == nil {
		ev.TicketTypes = []event.TicketType{}
	}
	// keywords are a pure function of the title
	ev.TitleKeywords = event.Keywords(ev.Title)
	ev.CreatedAt = time.UnixMilli(createdAt).UTC()
	ev.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &ev, nil
}

// AddAttendee implements EventStore.
func (s *SQLStore) AddAttendee(ctx context.Context, a *event.Attendee) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = event.AttendeePending
	}
	a.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "add attendee", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO attendees (`+attendeeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.EventID, a.UserID, a.Email, a.TicketType, a.Quantity, a.Amount,
			a.PaymentIntentID, string(a.Status), a.CreatedAt.UnixMilli())
		if err != nil {
			return err
		}
		if a.Status == event.AttendeeConfirmed {
			return s.bumpTicketsSold(ctx, tx, a.EventID, a.Quantity)
		}
		return nil
	})
}

// GetAttendee implements EventStore.
func (s *SQLStore) GetAttendee(ctx context.Context, id string) (*event.Attendee, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+attendeeColumns+` FROM attendees WHERE id = ?`), id)
	a, err := scanAttendee(row)
	if err != nil {
		return nil, mapError("get attendee", err)
	}
	return a, nil
}

// ListAttendees implements EventStore.
func (s *SQLStore) ListAttendees(ctx context.Context, eventID string) ([]event.Attendee, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = ? ORDER BY created_at, id`), eventID)
	if err != nil {
		return nil, mapError("list attendees", err)
	}
	defer rows.Close()

	out := make([]event.Attendee, 0)
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, mapError("list attendees", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list attendees", err)
	}
	return out, nil
}

// ConfirmAttendee implements EventStore.
func (s *SQLStore) ConfirmAttendee(ctx context.Context, id string) (*event.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out *event.Attendee
	err := s.inTx(ctx, "confirm attendee", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT `+attendeeColumns+` FROM attendees WHERE id = ?`), id)
		a, err := scanAttendee(row)
		if err != nil {
			return err
		}
		out = a
		if a.Status == event.AttendeeConfirmed {
			return nil
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE attendees SET status = ? WHERE id = ?`),
			string(event.AttendeeConfirmed), id); err != nil {
			return err
		}
		a.Status = event.AttendeeConfirmed
		return s.bumpTicketsSold(ctx, tx, a.EventID, a.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) bumpTicketsSold(ctx context.Context, tx *sql.Tx, eventID string, n int) error {
	res, err := tx.ExecContext(ctx, s.q(`UPDATE events SET tickets_sold = tickets_sold + ? WHERE id = ?`), n, eventID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanAttendee(sc scanner) (*event.Attendee, error) {
	var (
		a         event.Attendee
		status    string
		createdAt int64
	)
	err := sc.Scan(&a.ID, &a.EventID, &a.UserID, &a.Email, &a.TicketType, &a.Quantity, &a.Amount,
		&a.PaymentIntentID, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	a.Status = event.AttendeeStatus(status)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &a, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return mapError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(op, err)
	}
	return nil
}
