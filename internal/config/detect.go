package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var composeFiles = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
	"docker-compose.test.yml",
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Detection is what init found in a project directory.
type Detection struct {
	Project     string
	Deployments []Deployment
}

// Detect inspects the project directory and suggests one deployment per
// compose file found at its top level.
func Detect(projectDir string) Detection {
	det := Detection{Project: sanitizeID(filepath.Base(projectDir))}

	// compose.yaml shadows docker-compose.yml the same way docker compose does
	seen := make(map[string]bool)
	for _, f := range composeFiles {
		if _, err := os.Stat(filepath.Join(projectDir, f)); err != nil {
			continue
		}
		id := deploymentID(f)
		if seen[id] {
			continue
		}
		seen[id] = true
		det.Deployments = append(det.Deployments, Deployment{ID: id, File: f})
	}
	return det
}

// deploymentID names a deployment after its compose file: "compose.yaml" is
// "default", "docker-compose.test.yml" is "test".
func deploymentID(file string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(file, ".yml"), ".yaml")
	base = strings.TrimPrefix(base, "docker-")
	base = strings.TrimPrefix(base, "compose")
	base = strings.TrimPrefix(base, ".")
	if base == "" {
		return "default"
	}
	return sanitizeID(base)
}

func sanitizeID(s string) string {
	s = nonIDChars.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "default"
	}
	return s
}
