// Package descriptor answers the static metadata queries a configuration UI
// makes about the knowledge hook source: its icon and its connection fields.
package descriptor

import (
	"os"
	"strings"
)

// ConnectionLocal marks a source that runs on the local machine.
const ConnectionLocal = "Local"

// FieldFrequency is the user-editable capture period in seconds.
const FieldFrequency = "frequency"

// DefaultIcon is shown when no icon asset is configured or readable.
const DefaultIcon = `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64" viewBox="0 0 64 64">
  <rect x="4" y="4" width="10" height="12" fill="#FF0000" />
  <rect x="20" y="6" width="14" height="20" fill="#FFD700" />
  <rect x="36" y="2" width="16" height="10" fill="#00FF00" />
  <rect x="2" y="22" width="12" height="10" fill="#0000FF" />
  <rect x="16" y="32" width="24" height="14" fill="#FF00FF" />
  <rect x="44" y="18" width="16" height="14" fill="#FFA500" />
  <rect x="4" y="46" width="10" height="16" fill="#800080" />
  <rect x="30" y="48" width="16" height="10" fill="#008080" />
  <rect x="50" y="32" width="8" height="18" fill="#DA70D6" />
  <rect x="22" y="50" width="12" height="12" fill="#808000" />
</svg>
`

// Connection tells a configuration UI how the source connects and which
// parameters the user may edit.
type Connection struct {
	Type   string   `json:"connection_type" yaml:"connection_type"`
	Fields []string `json:"fields" yaml:"fields"`
}

// ConnectionData returns the connection descriptor. Each call returns a new
// value so callers may modify it freely.
func ConnectionData() Connection {
	return Connection{
		Type:   ConnectionLocal,
		Fields: []string{FieldFrequency},
	}
}

// Icon returns the SVG markup stored at path. Any read failure, or an empty
// file, yields DefaultIcon.
func Icon(path string) string {
	if strings.TrimSpace(path) == "" {
		return DefaultIcon
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultIcon
	}
	if strings.TrimSpace(string(data)) == "" {
		return DefaultIcon
	}
	return string(data)
}
