package preview

import (
	"html"
	"regexp"
	"strings"
)

// Sequences that would let CSS break out of its <style> element.
var cssBreakout = regexp.MustCompile(`(?i)<script|</style`)

// SanitizeCSS strips markup that could escape the style element.
func SanitizeCSS(css string) string {
	for {
		cleaned := cssBreakout.ReplaceAllString(css, "")
		if cleaned == css {
			return cleaned
		}
		css = cleaned
	}
}

const srcDocTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    * {
      box-sizing: border-box;
      margin: 0;
      padding: 0;
    }
    body {
      font-family: system-ui, sans-serif;
      padding: 1rem;
    }
    {{CSS}}
  </style>
</head>
<body>
  {{HTML}}
</body>
</html>`

// BuildSrcDoc builds the iframe document for the live preview from sanitized
// learner HTML and CSS.
func BuildSrcDoc(htmlSrc, css string) string {
	r := strings.NewReplacer("{{CSS}}", SanitizeCSS(css), "{{HTML}}", Sanitize(htmlSrc))
	return r.Replace(srcDocTemplate)
}

// EnsureDocument turns a learner HTML buffer into a complete standalone
// document linking styles.css. Complete documents are returned unchanged.
func EnsureDocument(src, title string) string {
	lower := strings.ToLower(strings.TrimSpace(src))
	hasHTML := strings.Contains(lower, "<html")
	hasHead := strings.Contains(lower, "<head")
	hasBody := strings.Contains(lower, "<body")

	switch {
	case strings.Contains(lower, "<!doctype") && hasHTML && hasHead && hasBody:
		return src
	case hasHTML && hasHead && hasBody:
		return "<!DOCTYPE html>\n" + src
	case hasBody:
		return documentHead(title) + src + "\n</html>"
	default:
		return documentHead(title) + "<body>\n" + src + "\n</body>\n</html>"
	}
}

func documentHead(title string) string {
	return `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>` + html.EscapeString(title) + `</title>
  <link rel="stylesheet" href="styles.css" />
</head>
`
}
