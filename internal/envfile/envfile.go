package envfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WebViewURLKey is the variable the mobile wrapper reads to find the web server.
const WebViewURLKey = "EXPO_PUBLIC_WEBVIEW_URL"

// Read parses a dotenv file into a map.
// Blank lines and comments are skipped, surrounding quotes are removed.
func Read(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		vars[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading env file: %w", err)
	}

	return vars, nil
}

// FirstExisting returns the first of paths that exists, or "".
func FirstExisting(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// EnsureFile creates an empty env file (and its directory) when it does not exist.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create env directory: %w", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to create env file: %w", err)
	}
	return nil
}

// UpdateEnvFile upserts entries into an existing env file.
// Existing KEY= lines are replaced in place; new keys are appended in sorted order.
// Running it twice with the same entries leaves the file unchanged.
func UpdateEnvFile(path string, entries map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	content := string(data)
	var lines []string
	if content != "" {
		lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	}

	written := make(map[string]bool, len(entries))
	for i, line := range lines {
		key, _, ok := parseLine(line)
		if !ok {
			continue
		}
		if value, found := entries[key]; found {
			lines[i] = key + "=" + value
			written[key] = true
		}
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		if !written[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		lines = append(lines, key+"="+entries[key])
	}

	out := strings.Join(lines, "\n")
	if out != "" {
		out += "\n"
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

func parseLine(raw string) (key, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	key = strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", false
	}
	value = strings.Trim(strings.TrimSpace(parts[1]), `"'`)
	return key, value, true
}
