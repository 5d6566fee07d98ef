package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/college-scheduler/internal/civil"
)

// Config captures environment driven configuration values for the
// materialization service.
type Config struct {
	SQLiteDSN          string
	TimezoneOffset     string
	ReminderOffsets    []int
	GenerationInterval time.Duration
	BriefingTime       string
	QueueRetries       int
	QueueRetryDelay    time.Duration
}

// Load parses configuration values from the current process environment.
// A .env file in the working directory is read first when present; real
// environment variables win over file entries.
//
// The loader applies defaults for optional fields while validating the
// values it does receive.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		SQLiteDSN:          "file:scheduler.db?_pragma=foreign_keys(1)",
		TimezoneOffset:     "+05:30",
		ReminderOffsets:    []int{10, 15, 30},
		GenerationInterval: time.Hour,
		BriefingTime:       "07:00",
		QueueRetries:       3,
		QueueRetryDelay:    5 * time.Second,
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if offset := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE_OFFSET")); offset != "" {
		if _, err := parseZoneOffset(offset); err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE_OFFSET")
		} else {
			cfg.TimezoneOffset = offset
		}
	}

	if offsets := strings.TrimSpace(os.Getenv("SCHEDULER_REMINDER_OFFSETS")); offsets != "" {
		parsed, err := parseOffsets(offsets)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_REMINDER_OFFSETS")
		} else {
			cfg.ReminderOffsets = parsed
		}
	}

	if interval := strings.TrimSpace(os.Getenv("SCHEDULER_GENERATION_INTERVAL")); interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, "SCHEDULER_GENERATION_INTERVAL")
		} else {
			cfg.GenerationInterval = parsed
		}
	}

	if briefing := strings.TrimSpace(os.Getenv("SCHEDULER_BRIEFING_TIME")); briefing != "" {
		if _, _, err := civil.ParseClock(briefing); err != nil {
			invalid = append(invalid, "SCHEDULER_BRIEFING_TIME")
		} else {
			cfg.BriefingTime = briefing
		}
	}

	if retries := strings.TrimSpace(os.Getenv("SCHEDULER_QUEUE_RETRIES")); retries != "" {
		parsed, err := strconv.Atoi(retries)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, "SCHEDULER_QUEUE_RETRIES")
		} else {
			cfg.QueueRetries = parsed
		}
	}

	if delay := strings.TrimSpace(os.Getenv("SCHEDULER_QUEUE_RETRY_DELAY")); delay != "" {
		parsed, err := time.ParseDuration(delay)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, "SCHEDULER_QUEUE_RETRY_DELAY")
		} else {
			cfg.QueueRetryDelay = parsed
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured civil timezone offset.
func (c Config) Location() (*time.Location, error) {
	return parseZoneOffset(c.TimezoneOffset)
}

// parseZoneOffset turns "+05:30" / "-07:00" into a fixed time.Location.
func parseZoneOffset(offset string) (*time.Location, error) {
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') {
		return nil, fmt.Errorf("invalid timezone offset %q", offset)
	}
	hour, minute, err := civil.ParseClock(offset[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid timezone offset %q", offset)
	}
	seconds := hour*3600 + minute*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+offset, seconds), nil
}

func parseOffsets(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	offsets := make([]int, 0, len(parts))
	for _, part := range parts {
		minutes, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid reminder offset %q", part)
		}
		offsets = append(offsets, minutes)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no reminder offsets provided")
	}
	return offsets, nil
}
