// Package playbook loads the declarative job set applied to a host group:
// which service account to converge, the variables available for
// templating, and the scheduled jobs themselves.
package playbook

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/edvin/cronverge/internal/model"
)

// Playbook is a validated, variable-expanded job declaration.
type Playbook struct {
	Name       string
	Hosts      string
	BecomeUser string
	Vars       map[string]string
	Jobs       []model.ScheduledJob
}

type playbookFile struct {
	Name       string            `yaml:"name"`
	Hosts      string            `yaml:"hosts" validate:"required"`
	BecomeUser string            `yaml:"become_user" validate:"required"`
	Vars       map[string]string `yaml:"vars"`
	Jobs       []jobFile         `yaml:"jobs" validate:"min=1,dive"`
}

type jobFile struct {
	Name     string `yaml:"name" validate:"required,max=128"`
	Minute   string `yaml:"minute"`
	Hour     string `yaml:"hour"`
	Job      string `yaml:"job" validate:"required,max=4096"`
	Disabled bool   `yaml:"disabled"`
}

var validate = validator.New()

// varRe matches {{ name }} placeholders.
var varRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Load reads and validates a playbook file.
func Load(logger zerolog.Logger, path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	pb, err := Parse(logger, data)
	if err != nil {
		return nil, fmt.Errorf("playbook %s: %w", path, err)
	}
	if pb.Name == "" {
		pb.Name = path
	}
	return pb, nil
}

// Parse decodes a playbook document, expands {{ var }} placeholders in the
// become user and job command lines, applies schedule defaults and checks
// every schedule against the standard five-field cron grammar. Jobs
// declared twice under the same name collapse to the last declaration,
// with a warning.
func Parse(logger zerolog.Logger, data []byte) (*Playbook, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f playbookFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	becomeUser, err := expand(f.BecomeUser, f.Vars)
	if err != nil {
		return nil, fmt.Errorf("become_user: %w", err)
	}

	pb := &Playbook{
		Name:       f.Name,
		Hosts:      f.Hosts,
		BecomeUser: becomeUser,
		Vars:       f.Vars,
	}
	if pb.Vars == nil {
		pb.Vars = map[string]string{}
	}

	index := make(map[string]int)
	for _, j := range f.Jobs {
		command, err := expand(j.Job, f.Vars)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		// A newline in either field would smuggle extra lines into the
		// rendered crontab.
		if strings.ContainsAny(j.Name, "\n\r") {
			return nil, fmt.Errorf("job %q: name contains a newline", j.Name)
		}
		if strings.ContainsAny(command, "\n\r") {
			return nil, fmt.Errorf("job %q: command contains a newline", j.Name)
		}
		job := model.ScheduledJob{
			Name:     j.Name,
			Minute:   j.Minute,
			Hour:     j.Hour,
			Command:  command,
			Disabled: j.Disabled,
		}
		if _, err := cron.ParseStandard(job.Schedule()); err != nil {
			return nil, fmt.Errorf("job %q: invalid schedule %q: %w", j.Name, job.Schedule(), err)
		}
		// Last declaration wins for duplicate names.
		if i, ok := index[j.Name]; ok {
			logger.Warn().
				Str("job", j.Name).
				Msg("duplicate job name, keeping the later declaration")
			pb.Jobs[i] = job
			continue
		}
		index[j.Name] = len(pb.Jobs)
		pb.Jobs = append(pb.Jobs, job)
	}

	return pb, nil
}

// Enabled returns the jobs that should be installed.
func (p *Playbook) Enabled() []model.ScheduledJob {
	var out []model.ScheduledJob
	for _, j := range p.Jobs {
		if !j.Disabled {
			out = append(out, j)
		}
	}
	return out
}

// expand substitutes {{ var }} placeholders from vars. Referencing an
// undefined variable is an error rather than a silent empty string.
func expand(s string, vars map[string]string) (string, error) {
	var missing []string
	out := varRe.ReplaceAllStringFunc(s, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}
