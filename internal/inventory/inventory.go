// Package inventory maps host group names to reachable hosts.
package inventory

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LocalGroup is a reserved group resolving to the local machine without
// any inventory entry. Useful for dev boxes and for provisioning the host
// the tool runs on.
const LocalGroup = "local"

// Host is a single reachable target.
type Host struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address" validate:"required"`
	Port    int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User    string `yaml:"user"`
	KeyPath string `yaml:"key_path"`
}

// Inventory is a named set of host groups.
type Inventory struct {
	Groups map[string][]Host `yaml:"groups" validate:"min=1,dive,min=1,dive"`
}

var validate = validator.New()

// Load reads an inventory file and applies per-host defaults: port 22,
// SSH user root, name falling back to the address.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("inventory %s: yaml decode: %w", path, err)
	}
	if err := validate.Struct(&inv); err != nil {
		return nil, fmt.Errorf("inventory %s: validation error: %w", path, err)
	}

	for group, hosts := range inv.Groups {
		if group == LocalGroup {
			return nil, fmt.Errorf("inventory %s: group name %q is reserved", path, LocalGroup)
		}
		for i := range hosts {
			h := &hosts[i]
			if h.Port == 0 {
				h.Port = 22
			}
			if h.User == "" {
				h.User = "root"
			}
			if h.Name == "" {
				h.Name = h.Address
			}
		}
	}

	return &inv, nil
}

// HostsFor resolves a group selector to its hosts. The reserved "local"
// group always resolves to a single local pseudo-host.
func (inv *Inventory) HostsFor(group string) ([]Host, error) {
	if group == LocalGroup {
		return []Host{{Name: "local", Address: "local"}}, nil
	}
	hosts, ok := inv.Groups[group]
	if !ok {
		return nil, fmt.Errorf("unknown host group %q (have: %v)", group, inv.GroupNames())
	}
	return hosts, nil
}

// GroupNames returns the declared group names, sorted.
func (inv *Inventory) GroupNames() []string {
	names := make([]string, 0, len(inv.Groups))
	for name := range inv.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
