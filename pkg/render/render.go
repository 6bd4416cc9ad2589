// Package render generates the static board page by embedding the
// current task set into an HTML template.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/harrisonrobin/kanba/pkg/model"
)

// cardsPattern matches the embedded seed-data array in the template.
var cardsPattern = regexp.MustCompile(`(?s)(const cards\s*=\s*)\[.*?\];`)

// Generator renders tasks into a deployable HTML document.
type Generator struct {
	TemplatePath string
	OutputPath   string
}

// NewGenerator creates a generator reading TemplatePath and writing
// OutputPath.
func NewGenerator(templatePath, outputPath string) *Generator {
	return &Generator{TemplatePath: templatePath, OutputPath: outputPath}
}

// Generate writes the output document and returns its path. The
// template must contain a `const cards = [...];` declaration, which is
// replaced with the task set as JSON.
func (g *Generator) Generate(tasks []model.Task) (string, error) {
	template, err := os.ReadFile(g.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", g.TemplatePath, err)
	}
	if !cardsPattern.Match(template) {
		return "", fmt.Errorf("template %s has no 'const cards' declaration", g.TemplatePath)
	}

	if tasks == nil {
		tasks = []model.Task{}
	}
	tasksJSON, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", err
	}

	replaced := false
	output := cardsPattern.ReplaceAllFunc(template, func(m []byte) []byte {
		if replaced {
			return m
		}
		replaced = true
		sub := cardsPattern.FindSubmatch(m)
		return append(append([]byte{}, sub[1]...), append(tasksJSON, ';')...)
	})

	if err := os.WriteFile(g.OutputPath, output, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", g.OutputPath, err)
	}
	return g.OutputPath, nil
}
