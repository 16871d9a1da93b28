package heartbeat

import (
	"path/filepath"
	"strings"
)

// Heartbeat is one timestamped "work happened on this file" record. The json
// tags match the wire format wakatime-cli expects for --extra-heartbeats.
type Heartbeat struct {
	Entity    string  `json:"entity"`
	Project   string  `json:"project"`
	Timestamp float64 `json:"timestamp"`
	IsWrite   bool    `json:"is_write"`
}

const projectSuffix = "[blender]"

// ProjectName derives the display project name from a file path: the base
// name without extension, tagged with the host suffix so dashboards group
// Blender work together.
func ProjectName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "Blender"
	}
	if strings.HasSuffix(strings.ToLower(base), projectSuffix) {
		return base
	}
	return base + " " + projectSuffix
}
