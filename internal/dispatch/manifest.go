// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// DefaultHelperModule provides loadjson, which the synthesised manifest uses.
const DefaultHelperModule = "puppetlabs-stdlib"

// ProjectFileName is the engine project definition.
const ProjectFileName = "bolt-project.yaml"

// projectFile is the part of bolt-project.yaml the dispatcher reads.
type projectFile struct {
	Modules []any `yaml:"modules"`
}

// Manifest returns a manifest declaring class with its parameters splatted
// from the JSON file at paramsPath.
func Manifest(class, paramsPath string) string {
	return fmt.Sprintf("class { '%s':\n  * => loadjson('%s'),\n}\n", quote(class), quote(paramsPath))
}

// quote escapes s for a single-quoted manifest string.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// ModuleDeclared reports whether the project's bolt-project.yaml lists module
// in its modules. A missing file or modules key means not declared. Entries
// match by name ("owner-name" or "owner/name") or by the last segment of a
// git URL.
func ModuleDeclared(projectDir, module string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(projectDir, ProjectFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", ProjectFileName, err)
	}

	var project projectFile
	if err := yaml.Unmarshal(data, &project); err != nil {
		return false, fmt.Errorf("parse %s: %w", ProjectFileName, err)
	}

	want := normalizeModule(module)
	for _, entry := range project.Modules {
		for _, name := range entryNames(entry) {
			if normalizeModule(name) == want {
				return true, nil
			}
		}
	}
	return false, nil
}

func entryNames(entry any) []string {
	switch e := entry.(type) {
	case string:
		return []string{e}
	case map[string]any:
		var names []string
		if name, ok := e["name"].(string); ok {
			names = append(names, name)
		}
		if git, ok := e["git"].(string); ok {
			base := git[strings.LastIndexAny(git, "/:")+1:]
			names = append(names, strings.TrimSuffix(base, ".git"))
		}
		return names
	default:
		return nil
	}
}

func normalizeModule(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "/", "-"))
}
