// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"encoding/json"
	"fmt"
	"time"
)

// record is the persisted shape of the clock state.
type record struct {
	Rate                 float64    `json:"rate"`
	VirtualInstant       time.Time  `json:"virtualInstant"`
	IsPaused             bool       `json:"isPaused"`
	PausedVirtualInstant *time.Time `json:"pausedVirtualInstant,omitempty"`
	AppVersion           string     `json:"appVersion"`
}

// encodeRecord captures the virtual instant at the snapshot's anchor. Real time
// spent while the process is down does not advance the restored clock.
func encodeRecord(s Snapshot, appVersion string) ([]byte, error) {
	rec := record{
		Rate:           s.Anchor.Rate,
		VirtualInstant: s.Anchor.VirtualInstant.Round(0).UTC(),
		IsPaused:       s.Paused,
		AppVersion:     appVersion,
	}
	if s.Paused {
		p := s.PausedVirtualInstant.Round(0).UTC()
		rec.PausedVirtualInstant = &p
	}
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode clock record: %w", err)
	}
	if rec.VirtualInstant.IsZero() {
		return nil, fmt.Errorf("decode clock record: missing virtualInstant")
	}
	return &rec, nil
}
