package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/kanba/pkg/model"
)

const testTemplate = `<html>
<script>
  const cards = [];
  renderBoard(cards);
</script>
</html>`

func TestGenerateEmbedsTasks(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.html")
	outputPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(templatePath, []byte(testTemplate), 0644))

	tasks := []model.Task{
		{ID: 1700000000123, Title: "Fix login bug", Column: model.Backlog, Priority: model.High, Tags: []string{"auth"}},
	}

	out, err := NewGenerator(templatePath, outputPath).Generate(tasks)
	require.NoError(t, err)
	assert.Equal(t, outputPath, out)

	html, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Fix login bug")
	assert.Contains(t, string(html), "const cards = [")
	assert.Contains(t, string(html), "renderBoard(cards);")
}

func TestGenerateEmptyBoard(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(templatePath, []byte(testTemplate), 0644))

	out, err := NewGenerator(templatePath, filepath.Join(dir, "index.html")).Generate(nil)
	require.NoError(t, err)

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "const cards = [];")
}

func TestGenerateMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	_, err := NewGenerator(filepath.Join(dir, "absent.html"), filepath.Join(dir, "index.html")).Generate(nil)
	assert.Error(t, err)
}

func TestGenerateTemplateWithoutMarker(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(templatePath, []byte("<html></html>"), 0644))

	_, err := NewGenerator(templatePath, filepath.Join(dir, "index.html")).Generate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "const cards")
}
