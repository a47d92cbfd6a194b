package dispatch

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/formrelay/formrelay/internal/form"
)

// bodyTemplate renders the field listing as a simple responsive HTML table.
var bodyTemplate = template.Must(template.New("body").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: #333; margin: 0; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background-color: #0066cc; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
.content { background-color: #f9f9f9; padding: 20px; border: 1px solid #ddd; border-top: none; border-radius: 0 0 5px 5px; }
table { width: 100%; border-collapse: collapse; background-color: white; }
th, td { padding: 12px 15px; text-align: left; border-bottom: 1px solid #ddd; }
th { background-color: #f2f2f2; }
.footer { margin-top: 30px; font-size: 12px; color: #777; text-align: center; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h2>{{.Title}}</h2></div>
<div class="content">
<table>
<tr><th>Field</th><th>Value</th></tr>
{{range .Rows}}<tr><td><strong>{{.Name}}</strong></td><td>{{.Value}}</td></tr>
{{end}}</table>
</div>
<div class="footer"><p>This email was sent by the form submission service.</p></div>
</div>
</body>
</html>
`))

type bodyRow struct {
	Name  string
	Value template.HTML
}

// renderHTML formats the submitted fields as an HTML table. Fields with a
// leading underscore are internal (honeypot, challenge tokens) and are
// excluded from the notification.
func renderHTML(title string, fields []form.Field) (string, error) {
	rows := make([]bodyRow, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f.Name, "_") || isChallengeField(f.Name) {
			continue
		}
		escaped := template.HTMLEscapeString(f.Value)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		rows = append(rows, bodyRow{Name: f.Name, Value: template.HTML(escaped)}) //nolint:gosec // escaped above
	}

	var b strings.Builder
	if err := bodyTemplate.Execute(&b, struct {
		Title string
		Rows  []bodyRow
	}{Title: title, Rows: rows}); err != nil {
		return "", fmt.Errorf("failed to render notification body: %w", err)
	}
	return b.String(), nil
}

// renderText formats the submitted fields as a plain-text alternative.
func renderText(title string, fields []form.Field) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", len(title)) + "\n\n")
	for _, f := range fields {
		if strings.HasPrefix(f.Name, "_") || isChallengeField(f.Name) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	return b.String()
}

// isChallengeField reports whether the field carries a captcha widget token
// rather than user content.
func isChallengeField(name string) bool {
	switch name {
	case "h-captcha-response", "g-recaptcha-response", "cf-turnstile-response":
		return true
	}
	return false
}
