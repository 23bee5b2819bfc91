package model

import (
	"encoding/json"
	"time"
)

// SimulatedMarker is the payload key that flags readings produced by
// the telemetry simulator rather than a real device. Such readings
// are excluded from default listings.
const SimulatedMarker = "__simulated__"

// Reading represents one telemetry sample stored in the `readings`
// table. DeviceTimestamp is reported by the device and untrusted;
// ReceivedAt is stamped by the server and is authoritative for
// ordering and rate limiting. The payload is an arbitrary small JSON
// document kept verbatim.
type Reading struct {
	ID              uint64          // readings.id
	DeviceID        string          // readings.device_id
	DeviceTimestamp *time.Time      // readings.device_timestamp (nullable)
	ReceivedAt      time.Time       // readings.received_at
	Payload         json.RawMessage // readings.payload
	PayloadSize     int             // readings.payload_size
}

// Simulated reports whether the reading carries the simulator marker
// in its payload.
func (r Reading) Simulated() bool {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(r.Payload, &body); err != nil {
		return false
	}
	raw, ok := body[SimulatedMarker]
	if !ok {
		return false
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err != nil {
		return false
	}
	return flag
}
