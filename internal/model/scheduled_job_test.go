package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduledJob_Schedule(t *testing.T) {
	tests := []struct {
		name string
		job  ScheduledJob
		want string
	}{
		{"minute only", ScheduledJob{Minute: "*/15"}, "*/15 * * * *"},
		{"minute and hour", ScheduledJob{Minute: "5", Hour: "2"}, "5 2 * * *"},
		{"empty fields default to every occurrence", ScheduledJob{}, "* * * * *"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.job.Schedule())
		})
	}
}

func TestRunReport_Summary(t *testing.T) {
	report := RunReport{
		Hosts: []HostResult{
			{Host: "web-1", Events: []ChangeEvent{
				{Action: ActionCreated},
				{Action: ActionCreated},
				{Action: ActionUnchanged},
			}},
			{Host: "web-2", Error: "host unreachable"},
		},
	}

	summary := report.Summary()
	assert.Equal(t, 2, summary[ActionCreated])
	assert.Equal(t, 1, summary[ActionUnchanged])
	assert.Equal(t, 1, summary["failed"])
}
