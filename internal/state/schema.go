package state

// Schema contains SQL schema definitions for the state database
const Schema = `
-- Marker row, present once the state has been written at least once
CREATE TABLE IF NOT EXISTS state_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Message-IDs already answered, in insertion order
CREATE TABLE IF NOT EXISTS handled_messages (
    position INTEGER PRIMARY KEY,
    message_id TEXT NOT NULL UNIQUE
);

-- Delivered replies, for rate accounting
CREATE TABLE IF NOT EXISTS send_events (
    position INTEGER PRIMARY KEY,
    sent_at INTEGER NOT NULL,
    sender TEXT NOT NULL,
    message_id TEXT NOT NULL DEFAULT ''
);

-- Conversation history per correspondent and persona
CREATE TABLE IF NOT EXISTS exchanges (
    position INTEGER PRIMARY KEY,
    correspondent TEXT NOT NULL,
    persona_key TEXT NOT NULL,
    exchanged_at INTEGER NOT NULL,
    inbound TEXT NOT NULL DEFAULT '',
    outbound TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_send_events_sent_at ON send_events(sent_at);
CREATE INDEX IF NOT EXISTS idx_send_events_sender ON send_events(sender);
CREATE INDEX IF NOT EXISTS idx_exchanges_pair ON exchanges(correspondent, persona_key);
`
