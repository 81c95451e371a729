// Package relay handles the inbound form submission request: it decodes the
// multipart body, uploads the attachment to the helpdesk and creates a
// ticket referencing it.
package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/deskdrop/deskdrop/internal/formdata"
	"github.com/deskdrop/deskdrop/internal/helpdesk"
)

// Desk is an abstraction for the helpdesk API
type Desk interface {
	UploadAttachment(*formdata.File) (*helpdesk.Attachment, error)
	CreateTicket(*formdata.Form, *helpdesk.Attachment) (int64, error)
	DeleteAttachment(*helpdesk.Attachment) error
}

// Handler represents the handler type
type Handler struct {
	desk Desk
}

// NewHandler returns a new Handler
func NewHandler(d Desk) *Handler {
	return &Handler{desk: d}
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

func respond(status int, payload interface{}) events.APIGatewayProxyResponse {

	headers := map[string]string{}
	for k, v := range corsHeaders {
		headers[k] = v
	}

	body := ""
	if payload != nil {
		headers["Content-Type"] = "application/json"
		b, err := json.Marshal(payload)
		if err != nil {
			// marshalling our own response types cannot fail in practice
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: headers}
		}
		body = string(b)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       body,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type successResponse struct {
	Success       bool   `json:"success"`
	TicketID      int64  `json:"ticketId"`
	Message       string `json:"message"`
	AttachmentURL string `json:"attachmentUrl"`
}

// decodeBody returns the raw request bytes. API Gateway base64-encodes
// binary bodies, so multipart posts normally arrive encoded.
func decodeBody(request *events.APIGatewayProxyRequest) ([]byte, error) {

	if request.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request body: %v", err)
		}
		return b, nil
	}
	return []byte(request.Body), nil
}

func contentType(request *events.APIGatewayProxyRequest) string {
	for k, v := range request.Headers {
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			return v
		}
	}
	return ""
}

// Handle deals with the incoming request
func (h *Handler) Handle(request *events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {

	if request.HTTPMethod == http.MethodOptions {
		return respond(http.StatusOK, nil), nil
	}
	if request.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}), nil
	}

	boundary, err := formdata.BoundaryFrom(contentType(request))
	if err != nil {
		return respond(http.StatusInternalServerError, errorResponse{
			Error:   "Form submission failed",
			Details: err.Error(),
		}), nil
	}

	body, err := decodeBody(request)
	if err != nil {
		return respond(http.StatusInternalServerError, errorResponse{
			Error:   "Form submission failed",
			Details: err.Error(),
		}), nil
	}

	form, err := formdata.Decode(body, boundary)
	if err != nil {
		return respond(http.StatusInternalServerError, errorResponse{
			Error:   "Form submission failed",
			Details: err.Error(),
		}), nil
	}

	if form.File == nil {
		return respond(http.StatusBadRequest, errorResponse{Error: "No file uploaded"}), nil
	}

	att, err := h.desk.UploadAttachment(form.File)
	if err != nil {
		fmt.Println(err)
		return respond(http.StatusInternalServerError, errorResponse{
			Error:   "Form submission failed",
			Details: err.Error(),
		}), nil
	}

	id, err := h.desk.CreateTicket(form, att)
	if err != nil {
		fmt.Println(err)
		// the attachment is already uploaded; try not to leave it orphaned
		details := fmt.Sprintf("%v; uploaded attachment: %v", err, att.URL)
		if derr := h.desk.DeleteAttachment(att); derr != nil {
			fmt.Println(derr)
			details += " (cleanup failed, needs manual reconciliation)"
		} else {
			details += " (cleaned up)"
		}
		return respond(http.StatusInternalServerError, errorResponse{
			Error:   "Form submission failed",
			Details: details,
		}), nil
	}

	return respond(http.StatusOK, successResponse{
		Success:       true,
		TicketID:      id,
		Message:       "Ticket created",
		AttachmentURL: att.URL,
	}), nil
}
