package poller

// DefaultNamespace is the platform's default namespace sentinel.
const DefaultNamespace = "_"

// DefaultMetadataTarget is the reserved field events carry poll metadata
// under when the definition does not choose one.
const DefaultMetadataTarget = "@metadata"

// Definition describes one activation poller. Loaded once at startup and
// never mutated afterwards.
type Definition struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host"`
	Principal string `yaml:"principal"`
	Secret    string `yaml:"secret"`
	Namespace string `yaml:"namespace,omitempty"`

	// Interval is the deprecated fixed polling period in seconds.
	// Mutually exclusive with Schedule.
	Interval *int `yaml:"interval,omitempty"`

	// Schedule holds exactly one key from {cron, every, at, in}.
	Schedule map[string]string `yaml:"schedule,omitempty"`

	// Timezone applies to cron evaluation only. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Target nests the decoded record under this event field.
	// Empty means the record is merged at the event's top level.
	Target string `yaml:"target,omitempty"`

	// MetadataTarget is the event field metadata is attached under.
	// Absent means DefaultMetadataTarget; the empty string disables
	// metadata capture entirely.
	MetadataTarget *string `yaml:"metadataTarget,omitempty"`
}

// MetadataField resolves the metadata target, applying the default.
// Returns "" when metadata capture is disabled.
func (d *Definition) MetadataField() string {
	if d.MetadataTarget == nil {
		return DefaultMetadataTarget
	}
	return *d.MetadataTarget
}
