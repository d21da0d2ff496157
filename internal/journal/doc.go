// Package journal persists channel events to PostgreSQL.
//
// Events are consumed from a router buffer and written in batches with
// CopyFrom, flushed by size or interval. Expected table:
//
//	CREATE TABLE channel_events (
//	    account_id  uuid        NOT NULL,
//	    channel     text        NOT NULL,
//	    kind        text        NOT NULL,
//	    state       text        NOT NULL,
//	    status      integer     NOT NULL,
//	    occurred_at timestamptz NOT NULL
//	);
//
// The journal is optional; the gateway runs without it when disabled.
package journal
