package playbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlaybook = `
name: ynr cron
hosts: web
become_user: "{{ project_name }}"
vars:
  project_name: ynr
  project_root: /var/www/ynr
  cron_email: ops@example.org
jobs:
  - name: Update materialized view
    minute: "*/15"
    job: "output-on-error {{ project_root }}/manage.py update_data_export_view"
  - name: Import parties from EC
    minute: "5"
    hour: "2"
    job: "output-on-error {{ project_root }}/manage.py parties_import_from_ec --post-to-slack"
  - name: Twitter import
    minute: "0"
    job: "output-on-error {{ project_root }}/manage.py twitter_update"
    disabled: true
`

func TestParse_Valid(t *testing.T) {
	pb, err := Parse(zerolog.Nop(), []byte(validPlaybook))
	require.NoError(t, err)

	assert.Equal(t, "web", pb.Hosts)
	assert.Equal(t, "ynr", pb.BecomeUser)
	require.Len(t, pb.Jobs, 3)

	j := pb.Jobs[0]
	assert.Equal(t, "*/15 * * * *", j.Schedule())
	assert.Equal(t, "output-on-error /var/www/ynr/manage.py update_data_export_view", j.Command)

	// Hour defaults to every hour when unset.
	assert.Equal(t, "5 2 * * *", pb.Jobs[1].Schedule())
}

func TestParse_EnabledExcludesDisabled(t *testing.T) {
	pb, err := Parse(zerolog.Nop(), []byte(validPlaybook))
	require.NoError(t, err)

	enabled := pb.Enabled()
	require.Len(t, enabled, 2)
	for _, j := range enabled {
		assert.NotEqual(t, "Twitter import", j.Name)
	}
}

func TestParse_UndefinedVariable(t *testing.T) {
	doc := `
hosts: web
become_user: deploy
jobs:
  - name: broken
    job: "{{ nope }}/run"
`
	_, err := Parse(zerolog.Nop(), []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestParse_InvalidSchedule(t *testing.T) {
	doc := `
hosts: web
become_user: deploy
jobs:
  - name: bad schedule
    minute: "61"
    job: run-it
`
	_, err := Parse(zerolog.Nop(), []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestParse_DuplicateNameLastWins(t *testing.T) {
	doc := `
hosts: web
become_user: deploy
jobs:
  - name: sync
    minute: "1"
    job: old-command
  - name: sync
    minute: "2"
    job: new-command
`
	var buf bytes.Buffer
	pb, err := Parse(zerolog.New(&buf), []byte(doc))
	require.NoError(t, err)
	require.Len(t, pb.Jobs, 1)
	assert.Equal(t, "new-command", pb.Jobs[0].Command)
	assert.Equal(t, "2 * * * *", pb.Jobs[0].Schedule())
	assert.Contains(t, buf.String(), "duplicate job name")
	assert.Contains(t, buf.String(), `"sync"`)
}

func TestParse_NewlineInCommandRejected(t *testing.T) {
	doc := `
hosts: web
become_user: deploy
vars:
  payload: "run\n* * * * * smuggled"
jobs:
  - name: sneaky
    job: "{{ payload }}"
`
	_, err := Parse(zerolog.Nop(), []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newline")
}

func TestParse_NewlineInNameRejected(t *testing.T) {
	doc := "hosts: web\nbecome_user: deploy\njobs:\n  - name: \"bad\\nname\"\n    job: run-it\n"
	_, err := Parse(zerolog.Nop(), []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newline")
}

func TestParse_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no hosts", "become_user: deploy\njobs:\n  - name: a\n    job: b\n"},
		{"no become_user", "hosts: web\njobs:\n  - name: a\n    job: b\n"},
		{"no jobs", "hosts: web\nbecome_user: deploy\n"},
		{"job without name", "hosts: web\nbecome_user: deploy\njobs:\n  - job: b\n"},
		{"job without command", "hosts: web\nbecome_user: deploy\njobs:\n  - name: a\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(zerolog.Nop(), []byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	doc := `
hosts: web
become_user: deploy
jobs:
  - name: a
    job: b
    retries: 3
`
	_, err := Parse(zerolog.Nop(), []byte(doc))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlaybook), 0644))

	pb, err := Load(zerolog.Nop(), path)
	require.NoError(t, err)
	assert.Equal(t, "ynr cron", pb.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(zerolog.Nop(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
