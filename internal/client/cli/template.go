package cli

const violationTemplate = `
{{.N}}. [{{.Violation.Severity}}] {{.Violation.Message}}
{{- range .Violation.SuggestedActions}}
   → {{.Description}}{{if .Impact}} ({{.Impact}}){{end}}
     id: {{.ID}}
{{- end}}
`

const pendingTemplate = `
{{.N}}. {{.Change.Update.StaffID}} {{.Change.Update.Date}}: {{.What}}
   ID:      {{.Change.ID}}
   Queued:  {{.Change.Timestamp.Format "2006-01-02 15:04:05"}}
   Retries: {{.Change.RetryCount}}
{{- if .Change.LastError }}
   Error:   {{.Change.LastError}}
{{- end}}
{{- if .Change.Conflicted }}
   Status:  conflict, waiting for resolve
{{- else if .Attention }}
   Status:  needs attention
{{- end}}
`
