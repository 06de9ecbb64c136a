// Package content embeds the default lesson and project catalog.
package content

import "embed"

// FS holds lessons.yaml and projects.yaml.
//
//go:embed *.yaml
var FS embed.FS
