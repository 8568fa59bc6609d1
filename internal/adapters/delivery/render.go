// Package delivery sends generated briefs to the user.
package delivery

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/mikey/llm-daily-brief/internal/core"
)

var pageTemplate = template.Must(template.New("brief").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Stats.SelectedCount}} of {{.Stats.TotalMessages}} messages selected, {{.Stats.CriticalCount}} critical.</p>
{{.Body}}
<hr>
<ul>
{{range .Selected}}<li><strong>{{.Subject}}</strong> from {{.Sender}} ({{pct .Score}})</li>
{{end}}</ul>
</body>
</html>
`))

type page struct {
	Title    string
	Body     template.HTML
	Stats    core.BriefStats
	Selected []core.Message
}

// Subject returns the mail subject line for a brief
func Subject(brief *core.Brief) string {
	return fmt.Sprintf("Daily Brief for %s: %d important emails",
		brief.GeneratedAt.Format("Mon Jan 2"), len(brief.Selected))
}

// RenderHTML renders the brief as a standalone HTML document
func RenderHTML(brief *core.Brief) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, page{
		Title: Subject(brief),
		// the brief text is HTML produced by the summarizer or the plain fallback
		Body:     template.HTML(brief.Text),
		Stats:    brief.Stats,
		Selected: brief.Selected,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render brief: %w", err)
	}
	return buf.Bytes(), nil
}
