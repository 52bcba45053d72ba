package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration for the rotation service.
type Config struct {
	SlackBotToken      string
	SlackSigningSecret string
	ChannelID          string

	TeamMembers []string
	StateDir    string

	ReminderHour   int
	ReminderMinute int
	Weekdays       map[time.Weekday]bool
	Timezone       *time.Location

	SchedulerEnabled  bool
	SchedulerInstance string

	HTTPPort        int
	HistoryDSN      string
	DeliveryTimeout time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults; missing required values and
// malformed values are collected and reported together so a broken
// deployment fails fast with one actionable message.
func Load() (Config, error) {
	cfg := Config{
		StateDir:         ".",
		ReminderHour:     9,
		ReminderMinute:   0,
		Weekdays:         defaultWeekdays(),
		Timezone:         time.Local,
		SchedulerEnabled: true,
		HTTPPort:         3000,
		HistoryDSN:       "file:rotation_history.db",
		DeliveryTimeout:  10 * time.Second,
	}

	missing := make([]string, 0, 3)
	invalid := make([]string, 0, 2)

	if token := strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")); token == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	} else {
		cfg.SlackBotToken = token
	}

	if secret := strings.TrimSpace(os.Getenv("SLACK_SIGNING_SECRET")); secret == "" {
		missing = append(missing, "SLACK_SIGNING_SECRET")
	} else {
		cfg.SlackSigningSecret = secret
	}

	if channel := strings.TrimSpace(os.Getenv("ROTATION_CHANNEL_ID")); channel == "" {
		missing = append(missing, "ROTATION_CHANNEL_ID")
	} else {
		cfg.ChannelID = channel
	}

	if members := strings.TrimSpace(os.Getenv("TEAM_MEMBERS")); members != "" {
		cfg.TeamMembers = splitList(members)
	}

	if dir := strings.TrimSpace(os.Getenv("STATE_DIR")); dir != "" {
		cfg.StateDir = dir
	}

	if at := strings.TrimSpace(os.Getenv("ROTATION_REMINDER_TIME")); at != "" {
		hour, minute, err := parseClock(at)
		if err != nil {
			invalid = append(invalid, "ROTATION_REMINDER_TIME")
		} else {
			cfg.ReminderHour = hour
			cfg.ReminderMinute = minute
		}
	}

	if days := strings.TrimSpace(os.Getenv("ROTATION_WEEKDAYS")); days != "" {
		weekdays, err := parseWeekdays(days)
		if err != nil {
			invalid = append(invalid, "ROTATION_WEEKDAYS")
		} else {
			cfg.Weekdays = weekdays
		}
	}

	if zone := strings.TrimSpace(os.Getenv("ROTATION_TIMEZONE")); zone != "" {
		location, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "ROTATION_TIMEZONE")
		} else {
			cfg.Timezone = location
		}
	}

	if enabled := strings.TrimSpace(os.Getenv("ROTATION_SCHEDULER_ENABLED")); enabled != "" {
		value, err := strconv.ParseBool(enabled)
		if err != nil {
			invalid = append(invalid, "ROTATION_SCHEDULER_ENABLED")
		} else {
			cfg.SchedulerEnabled = value
		}
	}

	cfg.SchedulerInstance = strings.TrimSpace(os.Getenv("ROTATION_SCHEDULER_INSTANCE"))

	if portValue := strings.TrimSpace(os.Getenv("ROTATION_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROTATION_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn, ok := os.LookupEnv("ROTATION_HISTORY_DSN"); ok {
		// Explicitly empty disables the audit trail.
		cfg.HistoryDSN = strings.TrimSpace(dsn)
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("ROTATION_DELIVERY_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "ROTATION_DELIVERY_TIMEOUT")
		} else {
			cfg.DeliveryTimeout = timeout
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	members := make([]string, 0, len(parts))
	for _, part := range parts {
		if member := strings.TrimSpace(part); member != "" {
			members = append(members, member)
		}
	}
	return members
}

// parseClock parses "HH:MM" in 24-hour form.
func parseClock(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %q as HH:MM: %w", value, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWeekdays parses a comma-separated weekday mask like "mon,wed,fri".
func parseWeekdays(value string) (map[time.Weekday]bool, error) {
	weekdays := make(map[time.Weekday]bool, 7)
	for _, part := range strings.Split(value, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		weekdays[day] = true
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("empty weekday mask")
	}
	return weekdays, nil
}

func defaultWeekdays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}
