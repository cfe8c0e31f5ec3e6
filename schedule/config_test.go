package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleConfigValidateCollectsAllIssues(t *testing.T) {
	cfg := ScheduleConfig{
		Frequency: "NEVER",
		Hour:      25,
		Minute:    -1,
		Timezone:  "",
	}

	errs := cfg.Validate()
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}

	assert.ElementsMatch(t, []string{"frequency", "hour", "minute", "timezone"}, fields)
}

func TestScheduleConfigFrequencySpecificFields(t *testing.T) {
	weekly := ScheduleConfig{Frequency: FrequencyWeekly, Hour: 9, Timezone: "UTC"}
	errs := weekly.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "day_of_week", errs[0].Field)

	dow := 9
	weekly.DayOfWeek = &dow
	errs = weekly.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "day_of_week", errs[0].Field)

	monthly := ScheduleConfig{Frequency: FrequencyMonthly, Hour: 9, Timezone: "UTC"}
	errs = monthly.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "day_of_month", errs[0].Field)

	dom := 32
	monthly.DayOfMonth = &dom
	errs = monthly.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "day_of_month", errs[0].Field)
}

func TestScheduleConfigTimezone(t *testing.T) {
	cfg := ScheduleConfig{Frequency: FrequencyDaily, Hour: 9, Timezone: "Europe/Istanbul"}
	assert.Empty(t, cfg.Validate())

	cfg.Timezone = "Not/AZone"
	errs := cfg.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "timezone", errs[0].Field)
}

func TestDeliveryConfigValidate(t *testing.T) {
	valid := DeliveryConfig{
		Method:     DeliveryEmail,
		Recipients: []string{"a@example.com", "b@example.com"},
		Format:     FormatCSV,
	}
	assert.Empty(t, valid.Validate())

	noRecipients := DeliveryConfig{Method: DeliveryEmail, Format: FormatPDF}
	errs := noRecipients.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "recipients", errs[0].Field)

	badAddress := DeliveryConfig{Method: DeliveryEmail, Recipients: []string{"not-an-email"}, Format: FormatPDF}
	errs = badAddress.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "recipients", errs[0].Field)

	webhook := DeliveryConfig{Method: DeliveryWebhook, Format: FormatExcel}
	errs = webhook.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "webhook_url", errs[0].Field)

	webhook.WebhookURL = "ftp://example.com/hook"
	errs = webhook.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "webhook_url", errs[0].Field)

	webhook.WebhookURL = "https://example.com/hook"
	assert.Empty(t, webhook.Validate())

	// DOWNLOAD needs neither recipients nor a URL
	download := DeliveryConfig{Method: DeliveryDownload, Format: FormatPDF}
	assert.Empty(t, download.Validate())
}

func TestParseHelpers(t *testing.T) {
	f, err := ParseFrequency(" daily ")
	assert.NoError(t, err)
	assert.Equal(t, FrequencyDaily, f)

	_, err = ParseFrequency("fortnightly")
	assert.Error(t, err)

	m, err := ParseDeliveryMethod("webhook")
	assert.NoError(t, err)
	assert.Equal(t, DeliveryWebhook, m)

	s, err := ParseStatus("paused")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, s)

	es, err := ParseExecutionStatus("completed")
	assert.NoError(t, err)
	assert.True(t, es.IsTerminal())

	es, err = ParseExecutionStatus("running")
	assert.NoError(t, err)
	assert.False(t, es.IsTerminal())
}
