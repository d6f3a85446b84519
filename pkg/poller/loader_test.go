package poller

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDef(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write definition: %v", err)
	}
	return path
}

const validBase = `
host: https://whisk.example.com
principal: user
secret: pass
`

func TestLoadValidDefinition(t *testing.T) {
	path := writeDef(t, "prod.yaml", validBase+`
name: prod-activations
namespace: whisk.system
interval: 30
target: activation
`)

	d, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if d.Name != "prod-activations" {
		t.Errorf("Expected name prod-activations, got %s", d.Name)
	}
	if d.Namespace != "whisk.system" {
		t.Errorf("Expected namespace whisk.system, got %s", d.Namespace)
	}
	if d.Interval == nil || *d.Interval != 30 {
		t.Errorf("Expected interval 30, got %v", d.Interval)
	}
	if d.Target != "activation" {
		t.Errorf("Expected target activation, got %s", d.Target)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeDef(t, "minimal.yaml", validBase+"interval: 10\n")

	d, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if d.Name != "minimal" {
		t.Errorf("Expected name defaulted from filename, got %s", d.Name)
	}
	if d.Namespace != DefaultNamespace {
		t.Errorf("Expected default namespace %q, got %q", DefaultNamespace, d.Namespace)
	}
	if got := d.MetadataField(); got != DefaultMetadataTarget {
		t.Errorf("Expected default metadata target %q, got %q", DefaultMetadataTarget, got)
	}
}

func TestMetadataTargetDisable(t *testing.T) {
	path := writeDef(t, "nometa.yaml", validBase+`
interval: 10
metadataTarget: ""
`)

	d, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if got := d.MetadataField(); got != "" {
		t.Errorf("Expected metadata capture disabled, got %q", got)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing host",
			content: `
principal: user
secret: pass
interval: 10
`,
		},
		{
			name: "relative host",
			content: `
host: whisk.example.com
principal: user
secret: pass
interval: 10
`,
		},
		{
			name:    "missing principal",
			content: "host: https://whisk.example.com\nsecret: pass\ninterval: 10\n",
		},
		{
			name:    "missing secret",
			content: "host: https://whisk.example.com\nprincipal: user\ninterval: 10\n",
		},
		{
			name:    "neither interval nor schedule",
			content: validBase,
		},
		{
			name: "both interval and schedule",
			content: validBase + `
interval: 10
schedule:
  every: 10s
`,
		},
		{
			name: "two schedule keys",
			content: validBase + `
schedule:
  every: 10s
  cron: "* * * * *"
`,
		},
		{
			name: "unrecognized schedule key",
			content: validBase + `
schedule:
  hourly: "1"
`,
		},
		{
			name: "bad cron expression",
			content: validBase + `
schedule:
  cron: "not cron"
`,
		},
		{
			name: "bad every duration",
			content: validBase + `
schedule:
  every: fast
`,
		},
		{
			name:    "zero interval",
			content: validBase + "interval: 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDef(t, "def.yaml", tt.content)
			if _, err := LoadFromFile(path); err == nil {
				t.Errorf("Expected validation error but got none")
			}
		})
	}
}

func TestScheduleForms(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"cron", validBase + "schedule:\n  cron: \"*/5 * * * *\"\n"},
		{"cron with timezone", validBase + "timezone: America/Sao_Paulo\nschedule:\n  cron: \"0 9 * * 1-5\"\n"},
		{"every", validBase + "schedule:\n  every: 30s\n"},
		{"at", validBase + "schedule:\n  at: \"2030-01-01T00:00:00Z\"\n"},
		{"in", validBase + "schedule:\n  in: 5m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDef(t, "def.yaml", tt.content)
			if _, err := LoadFromFile(path); err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(validBase+"interval: 10\n"), 0600); err != nil {
			t.Fatalf("Failed to write definition: %v", err)
		}
	}
	// non-yaml files are ignored
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0600); err != nil {
		t.Fatalf("Failed to write extra file: %v", err)
	}

	defs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("Expected 2 definitions, got %d", len(defs))
	}
}

func TestLoadDirEmpty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Errorf("Expected error for empty poller directory")
	}
}

func TestLoadDirInvalidDefinitionFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("host: https://x.example.com\n"), 0600); err != nil {
		t.Fatalf("Failed to write definition: %v", err)
	}
	if _, err := LoadDir(dir); err == nil {
		t.Errorf("Expected the invalid definition to fail the whole load")
	}
}
