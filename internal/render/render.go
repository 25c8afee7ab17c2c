// Package render turns a card view snapshot into HTML. Rendering is a pure
// projection: the same View always yields the same document.
package render

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"

	appLog "calcolumn/internal/log"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("calcolumn").
		Funcs(template.FuncMap{
			"px": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		}).
		ParseFS(templateFS, "templates/*.html.tmpl"),
)

const failedPage = `<!DOCTYPE html><html><body><div class="calcolumn-card" data-ready="true"><div class="error">Failed to render calendar</div></div></body></html>`

// Render produces the full HTML document for v. It never fails; template
// errors are logged and replaced by a minimal error panel.
func Render(v View) []byte {
	return RenderPage(Build(v))
}

// RenderPage executes the template for an already built Page.
func RenderPage(p Page) []byte {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "card", p); err != nil {
		appLog.Error("render: template execution failed", err, "date", p.DateISO)
		return []byte(failedPage)
	}
	return buf.Bytes()
}
