package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey names the files merged underneath a document. Later files
// win, and the including document wins over all of them.
const includeKey = "$include"

// LoadRaw reads a configuration file into a merged raw map, resolving
// $include directives relative to the including file.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}
	l := &includeLoader{active: map[string]bool{}}
	return l.load(path)
}

// includeLoader tracks the files on the current include chain.
type includeLoader struct {
	active map[string]bool
}

func (l *includeLoader) load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if l.active[abs] {
		return nil, fmt.Errorf("config include cycle detected at %s", abs)
	}
	l.active[abs] = true
	defer delete(l.active, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(abs, []byte(expandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	includes, err := popIncludes(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	merged := map[string]any{}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		base, err := l.load(inc)
		if err != nil {
			return nil, err
		}
		mergeInto(merged, base)
	}
	mergeInto(merged, doc)
	return merged, nil
}

// decodeDocument parses JSON5 for .json and .json5 files and YAML
// otherwise. YAML files must hold a single document.
func decodeDocument(path string, data []byte) (map[string]any, error) {
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, err
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, errors.New("expected a single YAML document")
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// popIncludes removes the include directive from doc and returns its paths.
func popIncludes(doc map[string]any) ([]string, error) {
	val, ok := doc[includeKey]
	if !ok {
		return nil, nil
	}
	delete(doc, includeKey)

	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		return nonBlank([]string{v}), nil
	case []any:
		paths := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be strings", includeKey)
			}
			paths = append(paths, s)
		}
		return nonBlank(paths), nil
	default:
		return nil, fmt.Errorf("%s must be a string or list of strings", includeKey)
	}
}

func nonBlank(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeInto deep-merges src into dst. Nested maps merge; everything else
// is replaced.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		if sub, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				mergeInto(existing, sub)
				continue
			}
		}
		dst[key] = value
	}
}

// decodeRawConfig decodes raw over Default so unset fields keep their
// defaults. Unknown keys are rejected.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv resolves ${NAME} and ${NAME:-default}. Bare $NAME is left
// alone so keys like $include survive.
func expandEnv(data string) string {
	return envPattern.ReplaceAllStringFunc(data, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		value, ok := os.LookupEnv(parts[1])
		if parts[2] != "" && (!ok || value == "") {
			return parts[3]
		}
		return value
	})
}
