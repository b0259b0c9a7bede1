package export

import (
	"bytes"
	"html/template"
	"time"
)

var postTemplate = template.Must(template.New("post").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
}).Parse(postTemplateText))

// TemplateData holds data for post template rendering
type TemplateData struct {
	Title       string
	Category    string
	Author      string
	PublishedAt time.Time
	ContentHTML template.HTML
	Comments    []TemplateComment
}

// TemplateComment holds comment data for template
type TemplateComment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// RenderPostHTML renders the post template with provided data
func RenderPostHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := postTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const postTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    blockquote { border-left: 3px solid #999; margin-left: 0; padding-left: 1rem; color: #444; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .comment .meta { margin-bottom: 0.5rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Category}} | {{.Author}} | {{formatDate .PublishedAt}}</div>
  <div>{{.ContentHTML}}</div>
  {{if .Comments}}
  <h2>Comments</h2>
  {{range .Comments}}
  <div class="comment">
    <div class="meta">{{.Author}} | {{formatDate .CreatedAt}}</div>
    <div>{{.Body}}</div>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
