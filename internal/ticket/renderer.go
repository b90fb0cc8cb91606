package ticket

import (
	"bytes"
	"text/template"

	"github.com/bookhive/bookhive/internal/auth"
)

const textTicketTemplate = `BOOKHIVE TICKET
===============
Reservation: {{ .Reservation.ID }}
Holder:      {{ .Principal.Email }}
Status:      {{ .Reservation.Status }}

Events:
{{- range .Events }}
  - {{ .Name }}{{ if .Location }} @ {{ .Location }}{{ end }} ({{ .StartsAt.Format "2006-01-02 15:04 MST" }})
{{- end }}
`

// TextRenderer renders tickets as plain text.
type TextRenderer struct {
	tmpl *template.Template
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		tmpl: template.Must(template.New("ticket").Parse(textTicketTemplate)),
	}
}

func (r *TextRenderer) Render(principal *auth.Principal, res *ReservationData, events []EventData) ([]byte, string, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Principal   *auth.Principal
		Reservation *ReservationData
		Events      []EventData
	}{principal, res, events})
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/plain; charset=utf-8", nil
}
