package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable SQL types

// FromSqlInt32 converts sql.NullInt32 to Go int with default
func FromSqlInt32(val sql.NullInt32, defaultVal int) int {
	if !val.Valid {
		return defaultVal
	}
	return int(val.Int32)
}

// FromSqlStringPtr converts sql.NullString to Go string pointer
func FromSqlStringPtr(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	return &val.String
}

// FromSqlTime converts sql.NullTime to Go time with default
func FromSqlTime(val sql.NullTime, defaultVal time.Time) time.Time {
	if !val.Valid {
		return defaultVal
	}
	return val.Time
}

// ToNullRawMessage converts raw JSON to a nullable JSONB value. Empty input and a JSON null are stored as SQL NULL.
func ToNullRawMessage(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

// FromNullRawMessage converts a nullable JSONB value to raw JSON, nil when NULL
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
