package poller

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/siqueiraa/WhiskFlow/pkg/sched"
)

// LoadFromFile reads and validates a single poller definition.
func LoadFromFile(path string) (Definition, error) {
	var d Definition

	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if len(data) == 0 {
		return d, fmt.Errorf("empty poller file")
	}
	if unmarshalErr := yaml.Unmarshal(data, &d); unmarshalErr != nil {
		return d, unmarshalErr
	}

	if d.Name == "" {
		d.Name = trimExt(filepath.Base(path))
	}
	if d.Namespace == "" {
		d.Namespace = DefaultNamespace
	}

	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

// LoadDir loads every .yaml definition under dir.
func LoadDir(dir string) ([]Definition, error) {
	var defs []Definition

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		d, loadErr := LoadFromFile(path)
		if loadErr != nil {
			return fmt.Errorf("%s: %w", path, loadErr)
		}
		defs = append(defs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no poller definitions in %s", dir)
	}
	return defs, nil
}

// Validate checks every startup invariant: required connection fields, a
// well-formed host URL, and exactly one triggering policy that parses.
func (d *Definition) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	u, err := url.Parse(d.Host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("host %q must be an absolute URL", d.Host)
	}
	if d.Principal == "" {
		return fmt.Errorf("principal is required")
	}
	if d.Secret == "" {
		return fmt.Errorf("secret is required")
	}

	hasInterval := d.Interval != nil
	hasSchedule := len(d.Schedule) > 0
	if hasInterval && hasSchedule {
		return fmt.Errorf("interval and schedule are mutually exclusive")
	}
	if !hasInterval && !hasSchedule {
		return fmt.Errorf("one of interval or schedule is required")
	}

	// a definition that loads must also build a trigger
	_, err = d.Trigger()
	return err
}

// Trigger builds the scheduling policy for this definition.
func (d *Definition) Trigger() (sched.Trigger, error) {
	if d.Interval != nil {
		return sched.NewInterval(*d.Interval)
	}
	return sched.ParseSchedule(d.Schedule, d.Timezone)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
