// Package markdown renders lesson theory and project briefs to HTML.
package markdown

import (
	"github.com/ashureev/codeando/internal/preview"
	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs

// Render converts markdown to sanitized HTML.
func Render(md string) string {
	out := blackfriday.Run([]byte(md), blackfriday.WithExtensions(extensions))
	return preview.Sanitize(string(out))
}
