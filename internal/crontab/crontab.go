// Package crontab models a user crontab as a set of managed, name-keyed
// entries plus environment lines, alongside unmanaged lines that are
// preserved as-is. Managed entries are tagged with a marker comment on the
// line above the cron line, so repeated provisioning runs can find and
// update them instead of appending duplicates.
package crontab

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/edvin/cronverge/internal/model"
)

// Marker precedes every managed cron line. The job name follows on the
// same line, e.g. "#cronverge: Update materialized view".
const Marker = "#cronverge:"

// Entry is a managed cron line.
type Entry struct {
	Name     string
	Schedule string
	Command  string
}

// Line renders the raw cron line for the entry.
func (e Entry) Line() string {
	return e.Schedule + " " + e.Command
}

type envVar struct {
	name  string
	value string
}

// Tab is a parsed crontab for a single user.
type Tab struct {
	env       []envVar
	entries   []Entry
	unmanaged []string
}

var envRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// Parse reads a raw crontab. Lines following a marker comment become
// managed entries; NAME=value lines become environment variables; every
// other non-blank line is kept verbatim as unmanaged content. If the same
// managed name appears twice the later entry wins.
func Parse(raw string) *Tab {
	t := &Tab{}
	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, Marker) {
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, Marker))
			if name == "" || i+1 >= len(lines) {
				// Dangling marker, drop it.
				continue
			}
			i++
			schedule, command, ok := splitCronLine(lines[i])
			if !ok {
				continue
			}
			t.setEntry(Entry{Name: name, Schedule: schedule, Command: command})
			continue
		}
		if m := envRe.FindStringSubmatch(trimmed); m != nil {
			t.env = append(t.env, envVar{name: m[1], value: m[2]})
			continue
		}
		t.unmanaged = append(t.unmanaged, lines[i])
	}
	return t
}

// splitCronLine splits a cron line into its five-field time specification
// and the command remainder. The command tail is kept verbatim: collapsing
// interior whitespace would make a re-parsed entry compare unequal to its
// declaration and defeat the no-op detection on the next run.
func splitCronLine(line string) (schedule, command string, ok bool) {
	rest := strings.TrimSpace(line)
	var fields [5]string
	for i := range fields {
		j := strings.IndexFunc(rest, unicode.IsSpace)
		if j < 0 {
			return "", "", false
		}
		fields[i] = rest[:j]
		rest = strings.TrimLeftFunc(rest[j:], unicode.IsSpace)
	}
	if rest == "" {
		return "", "", false
	}
	return strings.Join(fields[:], " "), rest, true
}

func (t *Tab) setEntry(e Entry) {
	for i := range t.entries {
		if t.entries[i].Name == e.Name {
			t.entries[i] = e
			return
		}
	}
	t.entries = append(t.entries, e)
}

// Entry returns the managed entry with the given name.
func (t *Tab) Entry(name string) (Entry, bool) {
	for _, e := range t.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns the managed entries in table order.
func (t *Tab) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Env returns the value of an environment line.
func (t *Tab) Env(name string) (string, bool) {
	for _, v := range t.env {
		if v.name == name {
			return v.value, true
		}
	}
	return "", false
}

// Upsert creates or updates the managed entry keyed by name and reports
// what it did.
func (t *Tab) Upsert(name, schedule, command string) string {
	for i := range t.entries {
		if t.entries[i].Name != name {
			continue
		}
		if t.entries[i].Schedule == schedule && t.entries[i].Command == command {
			return model.ActionUnchanged
		}
		t.entries[i].Schedule = schedule
		t.entries[i].Command = command
		return model.ActionUpdated
	}
	t.entries = append(t.entries, Entry{Name: name, Schedule: schedule, Command: command})
	return model.ActionCreated
}

// Prune removes managed entries whose names are not in keep and returns
// the removed names. Unmanaged lines are never pruned.
func (t *Tab) Prune(keep map[string]bool) []string {
	var removed []string
	kept := t.entries[:0]
	for _, e := range t.entries {
		if keep[e.Name] {
			kept = append(kept, e)
		} else {
			removed = append(removed, e.Name)
		}
	}
	t.entries = kept
	return removed
}

// SetEnv creates or updates an environment line and reports what it did.
func (t *Tab) SetEnv(name, value string) string {
	for i := range t.env {
		if t.env[i].name != name {
			continue
		}
		if t.env[i].value == value {
			return model.ActionUnchanged
		}
		t.env[i].value = value
		return model.ActionUpdated
	}
	t.env = append(t.env, envVar{name: name, value: value})
	return model.ActionCreated
}

// Render writes the crontab back out: environment lines first, then
// unmanaged lines in their original order, then managed entries with their
// marker comments. An empty tab renders as the empty string.
func (t *Tab) Render() string {
	var b strings.Builder
	for _, v := range t.env {
		b.WriteString(v.name)
		b.WriteString("=")
		b.WriteString(v.value)
		b.WriteString("\n")
	}
	for _, line := range t.unmanaged {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, e := range t.entries {
		b.WriteString(Marker)
		b.WriteString(" ")
		b.WriteString(e.Name)
		b.WriteString("\n")
		b.WriteString(e.Line())
		b.WriteString("\n")
	}
	return b.String()
}
