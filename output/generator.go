package output

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/Esclender/dai-assistant/types"
	"github.com/Esclender/dai-assistant/utils"
)

func NewGenerator(outputDir string) *Generator {
	return &Generator{baseDir: outputDir}
}

/**
 * Generator writes pipeline artifacts to disk: source files, JSON and
 * YAML documents, markdown reports, whole project trees. Every path is
 * confined under the base directory, and an existing file is only
 * replaced when the caller asks for it.
 */
type Generator struct {
	baseDir string
}

// WriteFile writes content under the base directory, creating parent
// directories as needed. Returns the path written.
func (g *Generator) WriteFile(relPath, content string, overwrite bool) (string, error) {
	path, err := g.resolve(relPath)
	if err != nil {
		return "", errors.Trace(err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", errors.AlreadyExistsf("file %s", relPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Trace(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Trace(err)
	}
	log.Debugf("wrote %s (%d bytes)", path, len(content))
	return path, nil
}

// WriteJSON writes data as indented JSON, appending .json when the
// path has no such extension.
func (g *Generator) WriteJSON(relPath string, data any, overwrite bool) (string, error) {
	raw, err := utils.SerializeIndent(data)
	if err != nil {
		return "", errors.Trace(err)
	}
	return g.WriteFile(ensureExt(relPath, ".json"), string(raw), overwrite)
}

// WriteYAML writes data as YAML, appending .yaml when the path has
// neither .yaml nor .yml.
func (g *Generator) WriteYAML(relPath string, data any, overwrite bool) (string, error) {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return "", errors.Trace(err)
	}
	return g.WriteFile(ensureExt(relPath, ".yaml", ".yml"), string(raw), overwrite)
}

// WriteMarkdown writes markdown content, appending .md when missing.
func (g *Generator) WriteMarkdown(relPath, content string, overwrite bool) (string, error) {
	return g.WriteFile(ensureExt(relPath, ".md"), content, overwrite)
}

// WriteTree writes a whole project tree from nested data: map values
// become directories, everything else becomes file content. Existing
// files are overwritten. Returns the paths created.
func (g *Generator) WriteTree(structure types.Data) ([]string, error) {
	type frame struct {
		rel  string
		node map[string]any
	}
	created := make([]string, 0)
	stack := []frame{{node: structure}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		names := make([]string, 0, len(current.node))
		for name := range current.node {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			rel := name
			if current.rel != "" {
				rel = filepath.Join(current.rel, name)
			}
			if child := toMap(current.node[name]); child != nil {
				path, err := g.resolve(rel)
				if err != nil {
					return created, errors.Trace(err)
				}
				if err := os.MkdirAll(path, 0o755); err != nil {
					return created, errors.Trace(err)
				}
				created = append(created, path)
				stack = append(stack, frame{rel: rel, node: child})
				continue
			}
			path, err := g.WriteFile(rel, cast.ToString(current.node[name]), true)
			if err != nil {
				return created, errors.Trace(err)
			}
			created = append(created, path)
		}
	}
	return created, nil
}

// Clean removes everything under the base directory, keeping the
// directory itself.
func (g *Generator) Clean() error {
	entries, err := os.ReadDir(g.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Trace(err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(g.baseDir, entry.Name())); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Path resolves a relative path inside the base directory without
// writing anything; empty input returns the base directory.
func (g *Generator) Path(relPath string) (string, error) {
	if relPath == "" {
		return g.baseDir, nil
	}
	return g.resolve(relPath)
}

func (g *Generator) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", errors.BadRequestf("path is empty")
	}
	if filepath.IsAbs(relPath) {
		return "", errors.BadRequestf("path %s must be relative", relPath)
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.BadRequestf("path %s escapes the output directory", relPath)
	}
	return filepath.Join(g.baseDir, cleaned), nil
}

func ensureExt(path string, exts ...string) string {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return path
		}
	}
	return path + exts[0]
}

func toMap(value any) map[string]any {
	switch v := value.(type) {
	case types.Data:
		return v
	case map[string]any:
		return v
	}
	return nil
}
