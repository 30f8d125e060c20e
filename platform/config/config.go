// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides connection settings for the scheduler queue and the
// slot lock.
type RedisConfig interface {
	GetRedisURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CalendarConfig provides settings for the calendar bridge service.
type CalendarConfig interface {
	GetCalendarAPIURL() string
	GetCalendarAPIKey() string
}

// VideoConfig provides settings for the video conferencing provider.
type VideoConfig interface {
	GetVideoAPIURL() string
	GetVideoAPIKey() string
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppAPIURL() string
	GetWhatsAppUsername() string
	GetWhatsAppPassword() string
	IsWhatsAppEnabled() bool
}

// BookingConfig provides scheduling settings for the booking module.
type BookingConfig interface {
	GetMatchTolerance() time.Duration
	GetWorkingHoursStart() int
	GetWorkingHoursEnd() int
	GetSlotDurationMinutes() int
	GetSearchDays() int
	GetTimezone() *time.Location
	GetReminderLead() time.Duration
}

// LockConfig provides settings for the slot lock.
type LockConfig interface {
	RedisConfig
	GetLockTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	RedisURL            string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	CalendarAPIURL      string
	CalendarAPIKey      string
	VideoAPIURL         string
	VideoAPIKey         string
	WhatsAppAPIURL      string
	WhatsAppUsername    string
	WhatsAppPassword    string
	MatchTolerance      time.Duration
	WorkingHoursStart   int
	WorkingHoursEnd     int
	SlotDurationMinutes int
	SearchDays          int
	Timezone            *time.Location
	ReminderLead        time.Duration
	LockTTL             time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string { return c.RedisURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// CalendarConfig implementation
func (c *Config) GetCalendarAPIURL() string { return c.CalendarAPIURL }
func (c *Config) GetCalendarAPIKey() string { return c.CalendarAPIKey }

// VideoConfig implementation
func (c *Config) GetVideoAPIURL() string { return c.VideoAPIURL }
func (c *Config) GetVideoAPIKey() string { return c.VideoAPIKey }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppAPIURL() string   { return c.WhatsAppAPIURL }
func (c *Config) GetWhatsAppUsername() string { return c.WhatsAppUsername }
func (c *Config) GetWhatsAppPassword() string { return c.WhatsAppPassword }
func (c *Config) IsWhatsAppEnabled() bool     { return c.WhatsAppAPIURL != "" }

// BookingConfig implementation
func (c *Config) GetMatchTolerance() time.Duration { return c.MatchTolerance }
func (c *Config) GetWorkingHoursStart() int        { return c.WorkingHoursStart }
func (c *Config) GetWorkingHoursEnd() int          { return c.WorkingHoursEnd }
func (c *Config) GetSlotDurationMinutes() int      { return c.SlotDurationMinutes }
func (c *Config) GetSearchDays() int               { return c.SearchDays }
func (c *Config) GetTimezone() *time.Location      { return c.Timezone }
func (c *Config) GetReminderLead() time.Duration   { return c.ReminderLead }

// LockConfig implementation
func (c *Config) GetLockTTL() time.Duration { return c.LockTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	tz, err := time.LoadLocation(getEnv("BOOKING_TIMEZONE", "Europe/Amsterdam"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}

	matchTolerance, err := durationEnv("BOOKING_MATCH_TOLERANCE", "30m")
	if err != nil {
		return nil, err
	}
	workingHoursStart, err := intEnv("BOOKING_WORKING_HOURS_START", "8")
	if err != nil {
		return nil, err
	}
	workingHoursEnd, err := intEnv("BOOKING_WORKING_HOURS_END", "22")
	if err != nil {
		return nil, err
	}
	slotDuration, err := intEnv("BOOKING_SLOT_DURATION_MINUTES", "60")
	if err != nil {
		return nil, err
	}
	searchDays, err := intEnv("BOOKING_SEARCH_DAYS", "14")
	if err != nil {
		return nil, err
	}
	reminderLead, err := durationEnv("BOOKING_REMINDER_LEAD", "24h")
	if err != nil {
		return nil, err
	}
	lockTTL, err := durationEnv("BOOKING_LOCK_TTL", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		CalendarAPIURL:      getEnv("CALENDAR_API_URL", ""),
		CalendarAPIKey:      getEnv("CALENDAR_API_KEY", ""),
		VideoAPIURL:         getEnv("VIDEO_API_URL", ""),
		VideoAPIKey:         getEnv("VIDEO_API_KEY", ""),
		WhatsAppAPIURL:      getEnv("WHATSAPP_API_URL", ""),
		WhatsAppUsername:    getEnv("WHATSAPP_API_USERNAME", ""),
		WhatsAppPassword:    getEnv("WHATSAPP_API_PASSWORD", ""),
		MatchTolerance:      matchTolerance,
		WorkingHoursStart:   workingHoursStart,
		WorkingHoursEnd:     workingHoursEnd,
		SlotDurationMinutes: slotDuration,
		SearchDays:          searchDays,
		Timezone:            tz,
		ReminderLead:        reminderLead,
		LockTTL:             lockTTL,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CalendarAPIURL == "" {
		return nil, fmt.Errorf("CALENDAR_API_URL is required")
	}
	if cfg.VideoAPIURL == "" {
		return nil, fmt.Errorf("VIDEO_API_URL is required")
	}
	if cfg.WorkingHoursStart < 0 || cfg.WorkingHoursEnd > 24 || cfg.WorkingHoursStart >= cfg.WorkingHoursEnd {
		return nil, fmt.Errorf("invalid working hours window %d-%d", cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	}
	if cfg.SlotDurationMinutes <= 0 {
		return nil, fmt.Errorf("BOOKING_SLOT_DURATION_MINUTES must be positive, got %d", cfg.SlotDurationMinutes)
	}
	if cfg.SearchDays <= 0 {
		return nil, fmt.Errorf("BOOKING_SEARCH_DAYS must be positive, got %d", cfg.SearchDays)
	}
	if cfg.MatchTolerance < 0 {
		return nil, fmt.Errorf("BOOKING_MATCH_TOLERANCE must not be negative, got %s", cfg.MatchTolerance)
	}
	if cfg.ReminderLead < 0 {
		return nil, fmt.Errorf("BOOKING_REMINDER_LEAD must not be negative, got %s", cfg.ReminderLead)
	}
	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("BOOKING_LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationEnv(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func intEnv(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	result, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return result, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
