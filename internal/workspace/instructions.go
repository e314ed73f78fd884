package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultInstructionFiles are read, in order, by LoadInstructions.
var DefaultInstructionFiles = []string{"AGENTS.md", "TOOLS.md"}

// Instructions holds the workspace files that shape the system prompt.
type Instructions struct {
	// Sections maps file name to trimmed content, for files that exist.
	Sections map[string]string
	// Order lists the loaded file names in load order.
	Order []string
	// Name is the agent name from a "- Name: value" line, if any.
	Name string
}

// LoadInstructions reads files relative to the guard's root. Missing files
// are skipped; paths escaping the workspace are rejected.
func LoadInstructions(guard *Guard, files []string) (*Instructions, error) {
	if len(files) == 0 {
		files = DefaultInstructionFiles
	}
	out := &Instructions{Sections: make(map[string]string)}
	for _, name := range files {
		path, err := guard.Resolve(name)
		if err != nil {
			return nil, err
		}
		content, err := readOptionalFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		out.Sections[name] = content
		out.Order = append(out.Order, name)
		if out.Name == "" {
			out.Name = parseName(content)
		}
	}
	return out, nil
}

// SystemPrompt joins base with the loaded sections.
func (in *Instructions) SystemPrompt(base string) string {
	var parts []string
	if s := strings.TrimSpace(base); s != "" {
		parts = append(parts, s)
	}
	if in != nil {
		if in.Name != "" {
			parts = append(parts, fmt.Sprintf("Your name is %s.", in.Name))
		}
		for _, name := range in.Order {
			parts = append(parts, fmt.Sprintf("## %s\n\n%s", filepath.Base(name), in.Sections[name]))
		}
	}
	return strings.Join(parts, "\n\n")
}

func readOptionalFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func parseName(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		if key, val := parseKeyValue(scanner.Text()); strings.EqualFold(key, "name") {
			return val
		}
	}
	return ""
}

// parseKeyValue extracts key-value from lines like "- Key: Value" or "Key: Value"
func parseKeyValue(line string) (string, string) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "-")
	line = strings.TrimSpace(line)

	idx := strings.Index(line, ":")
	if idx == -1 {
		return "", ""
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
}
