package html

import (
	"embed"
	"io/fs"
)

//go:embed templates
var embeddedTemplates embed.FS

// TemplatesFS exposes the built-in step templates so callers can reuse or
// extend them.
func TemplatesFS() fs.FS {
	return embeddedTemplates
}
