// ABOUTME: SQLite schema for conversation threads and their messages
// ABOUTME: Timestamps are unix nanoseconds so ordering survives any driver time format
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Conversation threads, one per session id
CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Messages in insertion order within a thread
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
CREATE INDEX IF NOT EXISTS idx_threads_updated ON threads(updated_at);
`

// SchemaVersion is the current schema version, stored in PRAGMA user_version
const SchemaVersion = 1
