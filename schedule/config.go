package schedule

import (
	"fmt"
	"net/mail"
	"net/url"
	"time"
)

// FieldError is a single validation finding, reported as a (field, message)
// pair so dry-run callers can surface every problem at once.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ScheduleConfig describes when a scheduled report fires. DayOfWeek is
// required for WEEKLY (0=Sunday), DayOfMonth for MONTHLY. All occurrence
// arithmetic happens in the configured IANA timezone.
type ScheduleConfig struct {
	Frequency  Frequency `json:"frequency" mapstructure:"frequency"`
	DayOfWeek  *int      `json:"day_of_week,omitempty" mapstructure:"day_of_week"`
	DayOfMonth *int      `json:"day_of_month,omitempty" mapstructure:"day_of_month"`
	Hour       int       `json:"hour" mapstructure:"hour"`
	Minute     int       `json:"minute" mapstructure:"minute"`
	Timezone   string    `json:"timezone" mapstructure:"timezone"`
}

// Validate returns every violated constraint. An empty slice means the config
// is usable.
func (c ScheduleConfig) Validate() []FieldError {
	var errs []FieldError

	if !c.Frequency.IsValid() {
		errs = append(errs, FieldError{"frequency", fmt.Sprintf("must be one of HOURLY, DAILY, WEEKLY, MONTHLY, QUARTERLY, YEARLY; got %q", c.Frequency)})
	}
	if c.Hour < 0 || c.Hour > 23 {
		errs = append(errs, FieldError{"hour", fmt.Sprintf("must be between 0 and 23; got %d", c.Hour)})
	}
	if c.Minute < 0 || c.Minute > 59 {
		errs = append(errs, FieldError{"minute", fmt.Sprintf("must be between 0 and 59; got %d", c.Minute)})
	}

	if c.Frequency == FrequencyWeekly {
		if c.DayOfWeek == nil {
			errs = append(errs, FieldError{"day_of_week", "required for WEEKLY schedules"})
		} else if *c.DayOfWeek < 0 || *c.DayOfWeek > 6 {
			errs = append(errs, FieldError{"day_of_week", fmt.Sprintf("must be between 0 (Sunday) and 6; got %d", *c.DayOfWeek)})
		}
	}
	if c.Frequency == FrequencyMonthly {
		if c.DayOfMonth == nil {
			errs = append(errs, FieldError{"day_of_month", "required for MONTHLY schedules"})
		} else if *c.DayOfMonth < 1 || *c.DayOfMonth > 31 {
			errs = append(errs, FieldError{"day_of_month", fmt.Sprintf("must be between 1 and 31; got %d", *c.DayOfMonth)})
		}
	}

	if c.Timezone == "" {
		errs = append(errs, FieldError{"timezone", "required"})
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, FieldError{"timezone", fmt.Sprintf("not a resolvable IANA timezone: %q", c.Timezone)})
	}

	return errs
}

// Location resolves the configured timezone. Validate must have passed first.
func (c ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DeliveryConfig describes how the generated artifact is delivered.
type DeliveryConfig struct {
	Method        DeliveryMethod `json:"method" mapstructure:"method"`
	Recipients    []string       `json:"recipients,omitempty" mapstructure:"recipients"`
	WebhookURL    string         `json:"webhook_url,omitempty" mapstructure:"webhook_url"`
	Format        ReportFormat   `json:"format" mapstructure:"format"`
	IncludeCharts bool           `json:"include_charts" mapstructure:"include_charts"`
}

// Validate returns every violated constraint.
func (c DeliveryConfig) Validate() []FieldError {
	var errs []FieldError

	if !c.Method.IsValid() {
		errs = append(errs, FieldError{"method", fmt.Sprintf("must be one of EMAIL, WEBHOOK, DOWNLOAD; got %q", c.Method)})
	}
	if !c.Format.IsValid() {
		errs = append(errs, FieldError{"format", fmt.Sprintf("must be one of PDF, EXCEL, CSV; got %q", c.Format)})
	}

	if c.Method == DeliveryEmail {
		if len(c.Recipients) == 0 {
			errs = append(errs, FieldError{"recipients", "at least one recipient is required for EMAIL delivery"})
		}
		for _, r := range c.Recipients {
			if _, err := mail.ParseAddress(r); err != nil {
				errs = append(errs, FieldError{"recipients", fmt.Sprintf("invalid email address: %q", r)})
			}
		}
	}

	if c.Method == DeliveryWebhook {
		if c.WebhookURL == "" {
			errs = append(errs, FieldError{"webhook_url", "required for WEBHOOK delivery"})
		} else if u, err := url.Parse(c.WebhookURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, FieldError{"webhook_url", fmt.Sprintf("must be a valid http or https URL; got %q", c.WebhookURL)})
		}
	}

	return errs
}
