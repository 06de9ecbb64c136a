// Package export packages learner code as a downloadable ZIP site.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/preview"
	"github.com/gosimple/slug"
	fixzip "github.com/hidez8891/zip"
)

// ContentType is the MIME type of exported archives.
const ContentType = "application/zip"

// Bundle is everything needed to export one lesson or project.
type Bundle struct {
	Title string
	Slug  string
	Kind  domain.ContentKind
	HTML  string
	CSS   string
	Now   time.Time
}

// FileName returns the download name of an exported archive.
func FileName(kind domain.ContentKind, entrySlug string) string {
	name := slug.Make(entrySlug)
	if name == "" {
		name = "playground"
	}
	if kind == domain.KindProject {
		return "codeando-project-" + name + ".zip"
	}
	return "codeando-" + name + ".zip"
}

// Readme renders the README.txt of the archive.
func Readme(b Bundle) string {
	label := "Lección"
	if b.Kind == domain.KindProject {
		label = "Proyecto"
	}
	return fmt.Sprintf("Generado por CodeAndo con Helena\n%s: %s\nFecha: %s\n",
		label, b.Title, b.Now.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// WriteZip writes index.html, styles.css and README.txt to w.
func WriteZip(w io.Writer, b Bundle) error {
	if b.Now.IsZero() {
		b.Now = time.Now()
	}

	zw := fixzip.NewWriter(w)
	files := []struct {
		name string
		body string
	}{
		{"index.html", preview.EnsureDocument(b.HTML, b.Title)},
		{"styles.css", b.CSS},
		{"README.txt", Readme(b)},
	}
	for _, f := range files {
		fw, err := zw.CreateHeader(&fixzip.FileHeader{
			Name:     f.name,
			Method:   fixzip.Deflate,
			Modified: b.Now,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := io.WriteString(fw, f.body); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}
