package model

import "fmt"

// ScheduledJob is a single declared cron job for a service account.
type ScheduledJob struct {
	Name     string `json:"name"`
	Minute   string `json:"minute"`
	Hour     string `json:"hour"`
	Command  string `json:"command"`
	Disabled bool   `json:"disabled"`
}

// Schedule renders the job's five-field cron time specification.
// Day-of-month, month and day-of-week are always "every occurrence".
func (j ScheduledJob) Schedule() string {
	minute := j.Minute
	if minute == "" {
		minute = "*"
	}
	hour := j.Hour
	if hour == "" {
		hour = "*"
	}
	return fmt.Sprintf("%s %s * * *", minute, hour)
}
