// Package profiles defines the known device categories together with
// telemetry generators that shape simulated payloads per category.
package profiles

import (
	"math"
	"math/rand"
	"time"
)

// Generator produces one category-shaped payload. The sequence number
// advances per emitted sample so generated series show slow trends
// instead of pure noise.
type Generator func(rng *rand.Rand, ts time.Time, seq int) map[string]any

// Profile describes one device category.
type Profile struct {
	Slug        string
	Name        string
	Description string
	DefaultName string
	// MinInterval/MaxInterval bound the randomized spacing between
	// simulated samples, in seconds.
	MinInterval int
	MaxInterval int
	Generator   Generator
}

// SamplePayload returns a deterministic example payload for the
// category, used by the categories listing.
func (p Profile) SamplePayload() map[string]any {
	return p.Generator(rand.New(rand.NewSource(0)), time.Unix(0, 0).UTC(), 0)
}

func weatherStation(rng *rand.Rand, ts time.Time, seq int) map[string]any {
	baseTemp := 18 + 6*math.Sin(float64(seq)/4.0)
	return map[string]any{
		"metrics": map[string]any{
			"temperature_c": round2(baseTemp + uniform(rng, -1.2, 1.2)),
			"humidity_pct":  round1(50 + 20*math.Sin(float64(seq)/5.0) + uniform(rng, -5, 5)),
			"wind_speed_ms": round2(math.Abs(rng.NormFloat64()*1.1 + 3.5)),
			"pressure_hpa":  round1(1008 + uniform(rng, -6.0, 6.0)),
			"rainfall_mm":   round2(math.Max(0.0, rng.NormFloat64()*0.3+0.4)),
			"uv_index":      round1(math.Max(0.0, rng.NormFloat64()*1.2+3.5)),
		},
		"status":    "outdoor",
		"timestamp": ts.Format(time.RFC3339),
	}
}

func indoorThermometer(rng *rand.Rand, ts time.Time, seq int) map[string]any {
	baseTemp := 22.0 + math.Sin(float64(seq)/8.0)
	humidity := 40 + 10*math.Cos(float64(seq)/6.0) + uniform(rng, -2, 2)
	return map[string]any{
		"metrics": map[string]any{
			"temperature_c": round2(baseTemp + uniform(rng, -0.6, 0.6)),
			"humidity_pct":  round1(humidity),
			"comfort_index": round2(0.81*humidity + 0.01*humidity*(baseTemp-14.3) + 46.3),
		},
		"status":    "indoor",
		"timestamp": ts.Format(time.RFC3339),
	}
}

func ipCamera(rng *rand.Rand, ts time.Time, seq int) map[string]any {
	motion := rng.Float64() < 0.15
	status := "idle"
	if motion {
		status = "motion_detected"
	}
	return map[string]any{
		"metrics": map[string]any{
			"bitrate_mbps":    round2(4.5 + uniform(rng, -0.8, 1.2)),
			"latency_ms":      round1(90 + uniform(rng, -20, 30)),
			"packet_loss_pct": round2(math.Max(0.0, rng.NormFloat64()*0.1+0.25)),
		},
		"status":         status,
		"snapshot_taken": motion,
		"timestamp":      ts.Format(time.RFC3339),
	}
}

func airQuality(rng *rand.Rand, ts time.Time, seq int) map[string]any {
	basePM := 12 + 4*math.Sin(float64(seq)/7.0)
	return map[string]any{
		"metrics": map[string]any{
			"pm2_5":   round1(math.Max(4.0, basePM+uniform(rng, -2.5, 2.5))),
			"pm10":    round1(math.Max(7.0, basePM*1.4+uniform(rng, -3.5, 3.5))),
			"co2_ppm": math.Round(420 + uniform(rng, -35, 45)),
			"voc_ppb": math.Round(math.Max(150, rng.NormFloat64()*60+320)),
		},
		"status":    "good",
		"timestamp": ts.Format(time.RFC3339),
	}
}

func smartLock(rng *rand.Rand, ts time.Time, seq int) map[string]any {
	status := "locked"
	var lastAction map[string]any
	if rng.Float64() < 0.2 {
		status = "unlocked"
		users := []string{"Operator", "Maintenance", "Courier"}
		methods := []string{"smartphone", "pin", "nfc"}
		lastAction = map[string]any{
			"user":      users[rng.Intn(len(users))],
			"method":    methods[rng.Intn(len(methods))],
			"timestamp": ts.Format(time.RFC3339),
		}
	}
	return map[string]any{
		"status":       status,
		"battery_pct":  round1(math.Max(20.0, 95.0-float64(seq)*uniform(rng, 0.05, 0.2))),
		"jam_detected": rng.Float64() < 0.02,
		"last_action":  lastAction,
		"timestamp":    ts.Format(time.RFC3339),
	}
}

// Categories maps every known slug to its profile.
var Categories = map[string]Profile{
	"weather_station": {
		Slug:        "weather_station",
		Name:        "Weather station",
		Description: "Outdoor weather station with wind, rain and UV metrics.",
		DefaultName: "Weather station",
		MinInterval: 15, MaxInterval: 45,
		Generator: weatherStation,
	},
	"indoor_thermometer": {
		Slug:        "indoor_thermometer",
		Name:        "Indoor thermometer",
		Description: "Room thermometer reporting temperature, humidity and comfort.",
		DefaultName: "Indoor thermometer",
		MinInterval: 20, MaxInterval: 60,
		Generator: indoorThermometer,
	},
	"ip_camera": {
		Slug:        "ip_camera",
		Name:        "IP camera",
		Description: "Network camera reporting stream health and motion events.",
		DefaultName: "IP camera",
		MinInterval: 10, MaxInterval: 30,
		Generator: ipCamera,
	},
	"air_quality": {
		Slug:        "air_quality",
		Name:        "Air quality sensor",
		Description: "Particulate, CO2 and VOC measurements for indoor air.",
		DefaultName: "Air quality sensor",
		MinInterval: 30, MaxInterval: 90,
		Generator: airQuality,
	},
	"smart_lock": {
		Slug:        "smart_lock",
		Name:        "Smart lock",
		Description: "Door lock reporting state changes, battery and jam alerts.",
		DefaultName: "Smart lock",
		MinInterval: 45, MaxInterval: 120,
		Generator: smartLock,
	},
}

// DefaultSlug is used when a device carries an unknown category.
const DefaultSlug = "weather_station"

// Get returns the profile for a slug.
func Get(slug string) (Profile, bool) {
	p, ok := Categories[slug]
	return p, ok
}

// Resolve returns the profile for a slug, falling back to the default
// profile for unknown categories.
func Resolve(slug string) Profile {
	if p, ok := Categories[slug]; ok {
		return p
	}
	return Categories[DefaultSlug]
}

// SeedFor derives a deterministic RNG seed from a device id (FNV-1a)
// so every consumer of a device's generator produces the same series.
func SeedFor(deviceID string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(deviceID); i++ {
		h ^= uint64(deviceID[i])
		h *= 1099511628211
	}
	return int64(h)
}

// Interval draws a randomized emission interval for the profile.
func (p Profile) Interval(rng *rand.Rand) time.Duration {
	span := p.MaxInterval - p.MinInterval
	secs := p.MinInterval
	if span > 0 {
		secs += rng.Intn(span + 1)
	}
	return time.Duration(secs) * time.Second
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
