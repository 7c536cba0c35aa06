// Package store provides the SQL-backed store for user-created events and
// their attendees.
package store

// The schema is written in the subset of SQL shared by SQLite and Postgres.
// Timestamps are stored as Unix milliseconds.

// CreateEventsTableSQL creates the events table.
const CreateEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    venue TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    event_date TEXT NOT NULL,
    event_time TEXT NOT NULL DEFAULT '',
    ticket_types TEXT NOT NULL DEFAULT '[]',
    image_url TEXT NOT NULL DEFAULT '',
    tickets_sold BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`

// CreateEventKeywordsTableSQL creates the keyword membership table. Each
// row says "keyword is in the title keyword set of event_id".
const CreateEventKeywordsTableSQL = `
CREATE TABLE IF NOT EXISTS event_keywords (
    event_id TEXT NOT NULL,
    keyword TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (event_id, keyword)
)`

// CreateAttendeesTableSQL creates the registrations table.
const CreateAttendeesTableSQL = `
CREATE TABLE IF NOT EXISTS attendees (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL,
    ticket_type TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    amount BIGINT NOT NULL,
    payment_intent_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at BIGINT NOT NULL
)`

// CreateIndexesSQL creates the lookup indexes used by search.
var CreateIndexesSQL = []string{
	// keyword membership lookups
	`CREATE INDEX IF NOT EXISTS idx_event_keywords_keyword ON event_keywords(keyword)`,

	// exact-match location search
	`CREATE INDEX IF NOT EXISTS idx_events_location ON events(location)`,

	`CREATE INDEX IF NOT EXISTS idx_events_category ON events(category)`,
	`CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendees_event ON attendees(event_id)`,
}

// AllSchemaSQL returns all statements needed to initialise the store.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateEventsTableSQL,
		CreateEventKeywordsTableSQL,
		CreateAttendeesTableSQL,
	}
	return append(stmts, CreateIndexesSQL...)
}
