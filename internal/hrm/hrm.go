// Package hrm reads chest-strap heart-rate monitors and tracks each
// player's peak heart rate during a test.
package hrm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reading is one heart-rate measurement attributed to a player.
type Reading struct {
	PlayerID int       `json:"player_id"`
	Address  string    `json:"address"`
	BPM      int       `json:"bpm"`
	At       time.Time `json:"at"`
}

// Monitor produces readings until shut down.
type Monitor interface {
	Start(ctx context.Context) error
	ListenToReadings(ch chan Reading) func()
	Shutdown()
}

// Assignments maps a monitor's address (upper-case MAC or UUID) to a player id.
type Assignments map[string]int

// ParseAssignments converts the configured player id -> address table.
func ParseAssignments(devices map[string]string) (Assignments, error) {
	a := make(Assignments, len(devices))
	for idStr, addr := range devices {
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil || id < 1 {
			return nil, fmt.Errorf("hrm: invalid player id %q", idStr)
		}
		key := normalizeAddress(addr)
		if key == "" {
			return nil, fmt.Errorf("hrm: empty address for player %d", id)
		}
		if other, dup := a[key]; dup {
			return nil, fmt.Errorf("hrm: address %s assigned to players %d and %d", key, other, id)
		}
		a[key] = id
	}
	return a, nil
}

// Player returns the player wearing the monitor at addr.
func (a Assignments) Player(addr string) (int, bool) {
	id, ok := a[normalizeAddress(addr)]
	return id, ok
}

// Addresses lists the assigned addresses, sorted.
func (a Assignments) Addresses() []string {
	out := make([]string, 0, len(a))
	for addr := range a {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func normalizeAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// ParseHeartRate decodes a Heart Rate Measurement notification.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func ParseHeartRate(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	// Bit 0: 0 = UINT8, 1 = UINT16
	if flags&0x01 == 0 {
		return int(buf[1]), nil
	}
	if len(buf) < 3 {
		return 0, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
	}
	return int(uint16(buf[1]) | uint16(buf[2])<<8), nil
}
