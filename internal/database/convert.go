package database

import (
	"time"

	"github.com/aristath/marketedge/internal/money"
)

// rfc3339Micro is the timestamp layout used for all stored TEXT timestamp
// columns: RFC 3339 with up to nine fractional-second digits, trailing
// zeros trimmed. It is not the fixed three-digit form of SQLite's
// strftime('%Y-%m-%dT%H:%M:%fZ').
const rfc3339Micro = "2006-01-02T15:04:05.999999999Z07:00"

func amountFromInt64(units int64) money.Amount {
	return money.Amount(units)
}

func parseStoredTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(rfc3339Micro, s)
}
