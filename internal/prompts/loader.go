// Package prompts holds the instruction templates sent with every extraction and
// generation request. Each stage owns one embedded JSON file mapping a template
// key to its text; templates use {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed *.json
var stageFiles embed.FS

// catalog is every stage file, parsed once on first use
var catalog = sync.OnceValues(func() (map[string]map[string]string, error) {
	names, err := fs.Glob(stageFiles, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := stageFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var templates map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		out[name] = templates
	}
	return out, nil
})

// Get returns the template stored under key in a stage file such as "semantic.json".
func Get(file, key string) (string, error) {
	all, err := catalog()
	if err != nil {
		return "", err
	}
	templates, ok := all[file]
	if !ok {
		return "", fmt.Errorf("failed to read prompt file %s: not embedded", file)
	}
	template, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return template, nil
}

// MustGet is Get for templates read at package initialization
func MustGet(file, key string) string {
	template, err := Get(file, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return template
}

// Format fills {{.Name}} placeholders from data. Placeholders without a value are left as is.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, 2*len(data))
	for name, value := range data {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Render looks up a template and fills its placeholders
func Render(file, key string, data map[string]string) (string, error) {
	template, err := Get(file, key)
	if err != nil {
		return "", err
	}
	return Format(template, data), nil
}
