package gatt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"qardioctl/internal/ble"
)

//go:embed uuids/sig.yaml
var uuidFS embed.FS

type uuidEntry struct {
	UUID       string   `yaml:"uuid"`
	Name       string   `yaml:"name"`
	Properties []string `yaml:"properties"`
}

type uuidTable struct {
	UUIDs []uuidEntry `yaml:"uuids"`
}

type annotation struct {
	name  string
	props ble.Property
}

var (
	annoMu      sync.RWMutex
	annotations = loadSIGTable()
)

func loadSIGTable() map[string]annotation {
	data, err := uuidFS.ReadFile("uuids/sig.yaml")
	if err != nil {
		panic("gatt: embedded uuid table missing: " + err.Error())
	}
	table := make(map[string]annotation)
	if err := mergeTable(table, data); err != nil {
		panic("gatt: embedded uuid table invalid: " + err.Error())
	}
	return table
}

func mergeTable(dst map[string]annotation, data []byte) error {
	var table uuidTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return err
	}
	for _, e := range table.UUIDs {
		props, err := parseProperties(e.Properties)
		if err != nil {
			return fmt.Errorf("uuid %s: %w", e.UUID, err)
		}
		dst[NormalizeUUID(e.UUID)] = annotation{name: e.Name, props: props}
	}
	return nil
}

func parseProperties(names []string) (ble.Property, error) {
	var props ble.Property
	for _, n := range names {
		switch n {
		case "read":
			props |= ble.PropertyRead
		case "write":
			props |= ble.PropertyWrite
		case "write-without-response":
			props |= ble.PropertyWriteWithoutResponse
		case "notify":
			props |= ble.PropertyNotify
		case "indicate":
			props |= ble.PropertyIndicate
		default:
			return 0, fmt.Errorf("unknown property %q", n)
		}
	}
	return props, nil
}

// RegisterVendorTable merges a device plugin's YAML annotation table
// into the global one. Called from plugin init.
func RegisterVendorTable(data []byte) error {
	annoMu.Lock()
	defer annoMu.Unlock()
	return mergeTable(annotations, data)
}

// Annotate returns the semantic name for a UUID, or ok=false when the
// UUID is not in the merged SIG+vendor tables. Unknown is not an error.
func Annotate(uuid string) (string, bool) {
	annoMu.RLock()
	defer annoMu.RUnlock()
	a, ok := annotations[NormalizeUUID(uuid)]
	if !ok || a.name == "" {
		return "", false
	}
	return a.name, true
}

func lookupAnnotation(uuid string) (annotation, bool) {
	annoMu.RLock()
	defer annoMu.RUnlock()
	a, ok := annotations[NormalizeUUID(uuid)]
	return a, ok
}

// NormalizeUUID lowercases a UUID and expands the 16-bit short form to
// the canonical 128-bit SIG form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 4 {
		return "0000" + u + sigBase
	}
	return u
}
