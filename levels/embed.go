package levels

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/milk9111/navkit/tilemap"
)

//go:embed *.json
var LevelsFS embed.FS

// Default is the level loaded when no name is given.
const Default = "caverns"

// Load decodes an embedded level by basename; the .json extension is optional.
func Load(name string) (*tilemap.Map, error) {
	if name == "" {
		name = Default
	}
	m, err := tilemap.LoadFS(LevelsFS, name)
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	return m, nil
}

// Names lists the embedded levels without their extension.
func Names() []string {
	entries, err := fs.ReadDir(LevelsFS, ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}
