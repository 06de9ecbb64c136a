package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/codeando/internal/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONTENT_DIR", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLessons_JSON(t *testing.T) {
	out, err := run(t, "lessons")
	require.NoError(t, err)

	var items []listItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 12)
	assert.Equal(t, "01-html-base", items[0].Slug)
	assert.True(t, items[0].HasSolution)
	assert.Positive(t, items[0].Challenges)
}

func TestProjects_Table(t *testing.T) {
	out, err := run(t, "projects", "-o", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 13)
	assert.Contains(t, lines[1], "01-landing-personal")
}

func TestCheck_SolutionPassesEverything(t *testing.T) {
	out, err := run(t, "check", "--slug", "01-html-base", "--solution", "--fail")
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 100, report.Percentage)
	for _, ch := range report.Challenges {
		assert.True(t, ch.Passed, ch.ID)
		assert.Empty(t, ch.Hint)
	}
}

func TestCheck_FilesAndFail(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte("<p>hola</p>"), 0o644))

	out, err := run(t, "check", "--slug", "01-html-base", "--html", htmlPath, "-o", "table", "--fail")
	require.Error(t, err)
	assert.Contains(t, out, "✗")
}

func TestCheck_UnknownSlug(t *testing.T) {
	_, err := run(t, "check", "--slug", "no-existe", "--starter")
	assert.Error(t, err)
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content.yaml"), []byte(`
lessons:
  - slug: regex
    title: Regex
    challenges:
      - id: broken
        checks:
          - type: css_regex
            value: "a{("
`), 0o644))

	out, err := run(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "ok: 1 lessons, 0 projects")

	_, err = run(t, "validate", dir, "--strict")
	assert.Error(t, err)
}

func TestValidate_RejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content.yaml"), []byte(`
lessons:
  - slug: a
    title: A
  - slug: a
    title: Otra A
`), 0o644))

	_, err := run(t, "validate", dir)
	assert.Error(t, err)
}

func TestExport_WritesZip(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out", "base.zip")

	out, err := run(t, "export", "--slug", "01-html-base", "--starter", "--out", outPath)
	require.NoError(t, err)
	assert.Equal(t, outPath, strings.TrimSpace(out))

	zr, err := zip.OpenReader(outPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"index.html", "styles.css", "README.txt"}, names)
}

func TestShare_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	cssPath := filepath.Join(dir, "styles.css")
	require.NoError(t, os.WriteFile(cssPath, []byte("body { color: red; }"), 0o644))

	out, err := run(t, "share", "--css", cssPath, "--base", "https://codeando.dev/playground")
	require.NoError(t, err)

	link := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(link, "https://codeando.dev/playground?s="))
	code, err := share.Decode(strings.TrimPrefix(link, "https://codeando.dev/playground?s="))
	require.NoError(t, err)
	assert.Equal(t, "body { color: red; }", code.CSS)
	assert.Empty(t, code.HTML)
}
