package metadata

import (
	"flag"
)

const (
	defaultPartitionID = "1801"
	defaultPartitionTo = "Wegra"
	defaultMandant     = "EAW"
)

// PartitionTable maps the capture partition id of a document to the business
// unit (Mandant) it belongs to. Unknown ids fall back to Default.
// Entries are only configurable from the config file.
type PartitionTable struct {
	Entries map[string]string `yaml:"entries"`
	Default string            `yaml:"default"`
}

func (t *PartitionTable) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	t.Entries = map[string]string{defaultPartitionID: defaultPartitionTo}
	f.StringVar(&t.Default, flagPrefix+"partitions.default", defaultMandant, "Mandant assigned to documents whose partition id has no explicit entry.")
}

func (t PartitionTable) Lookup(partitionID string) string {
	if m, ok := t.Entries[partitionID]; ok {
		return m
	}
	return t.Default
}
