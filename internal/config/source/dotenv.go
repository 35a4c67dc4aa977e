package source

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"rowsync-core/internal/config/schema"
	corelog "rowsync-core/internal/core/log"
)

// DotEnvSource copies variables from .env files into the process environment,
// where the EnvSource picks them up. Variables already set are never replaced.
type DotEnvSource struct {
	dirs   []string // directories to search for .env files
	prefix string   // only variables with this prefix are loaded
}

// NewDotEnvSource creates a new DotEnvSource
func NewDotEnvSource(prefix string, dirs []string) *DotEnvSource {
	return &DotEnvSource{
		dirs:   dirs,
		prefix: prefix,
	}
}

// Name returns the source name
func (s *DotEnvSource) Name() string {
	return "dotenv"
}

// Priority returns the source priority
func (s *DotEnvSource) Priority() int {
	return PriorityDotEnv
}

// LoadInto loads .env files; the config itself is filled by EnvSource.
func (s *DotEnvSource) LoadInto(cfg *schema.Root) error {
	for _, dir := range s.dirs {
		for _, file := range []string{".env", ".env.local"} {
			path := filepath.Join(dir, file)
			if err := s.loadEnvFile(path); err != nil {
				corelog.Debugf("Failed to load %s: %v", path, err)
			}
		}
	}
	return nil
}

func (s *DotEnvSource) loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok || !strings.HasPrefix(key, s.prefix+"_") {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			corelog.Warnf("Failed to set env var %s from %s: %v", key, path, err)
		}
	}
	corelog.Debugf("Loaded env file: %s", path)
	return scanner.Err()
}

// parseEnvLine parses KEY=value, optionally prefixed by "export " and with the
// value in single or double quotes. Comments and blank lines yield ok=false.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, key != ""
}

// FindDotEnvDirs lists the directories searched for .env files.
func FindDotEnvDirs(configFile string) []string {
	var dirs []string
	if configFile != "" {
		if dir := filepath.Dir(configFile); dir != "" && dir != "." {
			dirs = append(dirs, dir)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}
