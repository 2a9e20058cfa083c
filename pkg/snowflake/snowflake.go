// Package snowflake converts between time instants and time-ordered 64-bit IDs.
//
// An ID stores milliseconds since a platform epoch in its high bits; the low
// Shift bits hold worker/sequence data that this package ignores.
package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DiscordEpochMillis is 2015-01-01T00:00:00Z in Unix milliseconds.
	DiscordEpochMillis int64 = 1420070400000
	// DiscordShift is the number of non-timestamp bits in a Discord ID.
	DiscordShift uint = 22
)

// Encode returns the smallest ID whose timestamp is t.
// Instants before the epoch encode to "0".
func Encode(t time.Time, epochMillis int64, shift uint) string {
	ms := t.UnixMilli() - epochMillis
	if ms <= 0 {
		return "0"
	}
	return strconv.FormatUint(uint64(ms)<<shift, 10)
}

// Decode extracts the timestamp stored in id.
func Decode(id string, epochMillis int64, shift uint) (time.Time, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("snowflake: invalid id %q: %w", id, err)
	}
	return time.UnixMilli(int64(v>>shift) + epochMillis).UTC(), nil
}

// Cursor returns a Discord ID usable as an "after" pagination bound for t.
func Cursor(t time.Time) string { return Encode(t, DiscordEpochMillis, DiscordShift) }

// Timestamp returns the creation time of a Discord ID.
func Timestamp(id string) (time.Time, error) { return Decode(id, DiscordEpochMillis, DiscordShift) }
