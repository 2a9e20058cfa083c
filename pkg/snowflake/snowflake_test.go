package snowflake

import (
	"strconv"
	"testing"
	"time"
)

func TestCursorMatchesShiftFormula(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1700000000000)
	bound := now.Add(-46 * time.Hour)

	want := strconv.FormatInt(((now.UnixMilli()-165_600_000)-1420070400000)<<22, 10)
	if got := Cursor(bound); got != want {
		t.Fatalf("Cursor = %s, want %s", got, want)
	}
}

func TestEncodeBeforeEpoch(t *testing.T) {
	t.Parallel()
	if got := Encode(time.UnixMilli(0), DiscordEpochMillis, DiscordShift); got != "0" {
		t.Fatalf("Encode(before epoch) = %s, want 0", got)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		epoch int64
		shift uint
	}{
		{name: "discord", epoch: DiscordEpochMillis, shift: DiscordShift},
		{name: "custom", epoch: 1288834974657, shift: 22},
		{name: "narrow", epoch: 0, shift: 12},
	}
	at := time.Date(2024, 3, 17, 18, 0, 0, 123*int(time.Millisecond), time.UTC)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(at, tt.epoch, tt.shift), tt.epoch, tt.shift)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if !got.Equal(at) {
				t.Fatalf("round trip = %v, want %v", got, at)
			}
		})
	}
}

func TestTimestampKnownID(t *testing.T) {
	t.Parallel()
	// 175928847299117063 is the example ID from Discord's API reference.
	got, err := Timestamp("175928847299117063")
	if err != nil {
		t.Fatalf("Timestamp error: %v", err)
	}
	if want := time.UnixMilli(1462015105796).UTC(); !got.Equal(want) {
		t.Fatalf("Timestamp = %v, want %v", got, want)
	}
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()
	if _, err := Timestamp("not-an-id"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}
