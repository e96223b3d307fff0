package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// maxSQLLength bounds SQL text in log lines.
const maxSQLLength = 200

// Tool adds a tool name field.
func Tool(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// SessionID adds a session ID field.
func SessionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// Workflow adds a workflow name field.
func Workflow(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("workflow", name)
	}
}

// Step adds a workflow step field.
func Step(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("step", name)
	}
}

// Schema adds a Db2 schema field.
func Schema(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("schema", name)
	}
}

// Table adds a table name field.
func Table(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("table", name)
	}
}

// SQL adds the statement text, cut to 200 characters.
func SQL(stmt string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("sql", ClipSQL(stmt))
	}
}

// ClipSQL shortens a statement for logging.
func ClipSQL(stmt string) string {
	if len(stmt) > maxSQLLength {
		return stmt[:maxSQLLength] + "..."
	}
	return stmt
}

// Rows adds a row count field.
func Rows(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("rows", n)
	}
}

// Host adds the IBM i host name.
func Host(host string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("host", host)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// Approved adds an approval decision field.
func Approved(approved bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("approved", approved)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}
