package helpdesk

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/deskdrop/deskdrop/internal/config"
	"github.com/deskdrop/deskdrop/internal/formdata"
)

// Ticket is the JSON expected by the helpdesk ticket endpoint
type Ticket struct {
	Type     string   `json:"type,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Customer Customer `json:"customer,omitempty"`
	Message  Message  `json:"message,omitempty"`
}

// Customer identifies the submitter
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Message is the synthesized email-channel message on the ticket
type Message struct {
	Channel  string `json:"channel,omitempty"`
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	BodyText string `json:"body_text,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
}

// ticketPayload builds the ticket creation body from the submitted fields
// and the uploaded attachment.
func ticketPayload(cfg config.Config, form *formdata.Form, att *Attachment) ([]byte, error) {

	company := form.Fields["company"]
	subject := "New submission"
	if company != "" {
		subject = fmt.Sprintf("New submission from %v", company)
	}

	t := Ticket{
		Type:    "email",
		Subject: subject,
		Tags:    []string{"form-submission"},
		Customer: Customer{
			Name:  form.Fields["name"],
			Email: form.Fields["email"],
		},
		Message: Message{
			Channel:  "email",
			To:       cfg.ReplyTo,
			From:     form.Fields["email"],
			BodyText: textBody(form, att),
			BodyHTML: htmlBody(form, att),
		},
	}

	return json.Marshal(t)
}

// fieldNames returns the submitted field names in a stable order
func fieldNames(form *formdata.Form) []string {
	names := make([]string, 0, len(form.Fields))
	for n := range form.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func textBody(form *formdata.Form, att *Attachment) string {

	var b strings.Builder
	b.WriteString("New form submission\n\n")
	for _, n := range fieldNames(form) {
		fmt.Fprintf(&b, "%v: %v\n", n, form.Fields[n])
	}
	fmt.Fprintf(&b, "\nAttachment: %v (%v)\n", att.Name, att.URL)
	return b.String()
}

func htmlBody(form *formdata.Form, att *Attachment) string {

	var b strings.Builder
	b.WriteString("<h3>New form submission</h3><table>")
	for _, n := range fieldNames(form) {
		fmt.Fprintf(&b, "<tr><td>%v</td><td>%v</td></tr>",
			html.EscapeString(n), html.EscapeString(form.Fields[n]))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, `<p>Attachment: <a href="%v">%v</a></p>`,
		html.EscapeString(att.URL), html.EscapeString(att.Name))
	return b.String()
}
