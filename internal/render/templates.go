package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
)

//go:embed templates/*.html
var templateFS embed.FS

// parseTemplates loads the embedded partials, then overlays any templates
// found in dir so deployments can replace individual partials.
func parseTemplates(dir string) (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if dir != "" {
		tmpl, err = tmpl.ParseGlob(filepath.Join(dir, "*.html"))
		if err != nil {
			return nil, err
		}
	}
	return tmpl, nil
}

// defaultCommentForm renders the built-in comment form partial
func (r *Renderer) defaultCommentForm(parentID uint, next string) template.HTML {
	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, "comment_form", map[string]any{
		"PostURL":  fmt.Sprintf("%s/activities/comment", r.urlPrefix),
		"ParentID": parentID,
		"Next":     next,
	})
	if err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
