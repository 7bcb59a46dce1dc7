package emitter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* TargetsFile is the structure of the emitter targets YAML file:
 *
 *   targets:
 *     - https://hooks.example.com/a
 *     - https://hooks.example.com/b
 */
type TargetsFile struct {
	Targets []string `yaml:"targets"`
}

// LoadTargets reads and parses a YAML file listing target URLs
func LoadTargets(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}

	var file TargetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing targets YAML: %w", err)
	}

	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("targets file lists no URLs")
	}
	for _, url := range file.Targets {
		if url == "" {
			return nil, fmt.Errorf("target URL cannot be empty")
		}
	}

	return file.Targets, nil
}
