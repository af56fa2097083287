package agent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/Esclender/dai-assistant/types"
)

func NewDefinition(name, role string) *Definition {
	def := &Definition{Name: name, Role: role}
	defaults.SetDefaults(def)
	return def
}

/**
 * Definition describes one agent: who it is, how to prompt it, and
 * what shape of answer it must produce. Definitions round-trip as YAML
 * files in a configs directory so users can keep custom agents beside
 * the builtin templates.
 */
type Definition struct {
	Name           string `yaml:"name"`
	Role           string `yaml:"role"`
	Backstory      string `yaml:"backstory,omitempty"`
	PromptTemplate string `yaml:"prompt_template"`
	// input keys the prompt template expects to see.
	InputFormat []string `yaml:"input_format,omitempty"`
	// top-level keys the agent's JSON answer must carry; empty means
	// the answer stays free-form text.
	OutputFormat []string `yaml:"output_format,omitempty"`
	ModelName    string   `yaml:"model_name" default:"gpt-4-turbo"`
	Temperature  float64  `yaml:"temperature" default:"0.7"`
	MaxTokens    int      `yaml:"max_tokens" default:"2000"`
}

func (d *Definition) Validate() error {
	if d.Name == "" {
		return types.NewConfigurationErrorf("agent name is required")
	}
	if d.Role == "" {
		return types.NewConfigurationErrorf("agent %s: role is required", d.Name)
	}
	if d.PromptTemplate == "" {
		return types.NewConfigurationErrorf("agent %s: prompt template is required", d.Name)
	}
	return nil
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Library persists agent definitions as YAML files, one per agent,
// named after the agent.
type Library struct {
	dir string
}

// Save validates and writes the definition, creating the directory if
// needed. Returns the path written.
func (l *Library) Save(def *Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", errors.Trace(err)
	}
	path, err := l.path(def.Name)
	if err != nil {
		return "", errors.Trace(err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", errors.Trace(err)
	}
	raw, err := yaml.Marshal(def)
	if err != nil {
		return "", errors.Trace(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", errors.Trace(err)
	}
	return path, nil
}

func (l *Library) Load(name string) (*Definition, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("agent configuration %s", name)
		}
		return nil, errors.Trace(err)
	}
	// defaults first so fields absent from the file keep them
	def := NewDefinition("", "")
	if err := yaml.Unmarshal(raw, def); err != nil {
		return nil, errors.Trace(err)
	}
	if err := def.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return def, nil
}

func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}
	return names, nil
}

func (l *Library) Delete(name string) error {
	path, err := l.path(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundf("agent configuration %s", name)
		}
		return errors.Trace(err)
	}
	return nil
}

func (l *Library) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errors.BadRequestf("invalid agent name %q", name)
	}
	return filepath.Join(l.dir, name+".yaml"), nil
}
