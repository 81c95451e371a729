package relay

import (
	"bytes"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/tidwall/gjson"

	"github.com/deskdrop/deskdrop/internal/formdata"
	"github.com/deskdrop/deskdrop/internal/helpdesk"
)

type mockDesk struct {
	uploads   int
	tickets   int
	deletes   int
	uploadErr error
	ticketErr error
	deleteErr error
}

func (m *mockDesk) UploadAttachment(f *formdata.File) (*helpdesk.Attachment, error) {
	m.uploads++
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return &helpdesk.Attachment{
		URL:         "https://acme.example-helpdesk.com/attachments/1",
		Name:        f.Name,
		Size:        int64(len(f.Data)),
		ContentType: f.ContentType,
	}, nil
}

func (m *mockDesk) CreateTicket(form *formdata.Form, att *helpdesk.Attachment) (int64, error) {
	m.tickets++
	if m.ticketErr != nil {
		return 0, m.ticketErr
	}
	return 42, nil
}

func (m *mockDesk) DeleteAttachment(att *helpdesk.Attachment) error {
	m.deletes++
	return m.deleteErr
}

// formRequest builds a multipart POST event, base64 encoded like API Gateway
// delivers binary bodies.
func formRequest(t *testing.T, withFile bool) *events.APIGatewayProxyRequest {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("company", "Acme Ltd"); err != nil {
		t.Fatalf("could not write field: %v", err)
	}
	if withFile {
		fw, err := mw.CreateFormFile("file", "quote.pdf")
		if err != nil {
			t.Fatalf("could not create file part: %v", err)
		}
		if _, err := fw.Write([]byte("PDF bytes")); err != nil {
			t.Fatalf("could not write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("could not close multipart body: %v", err)
	}

	return &events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Headers:         map[string]string{"content-type": mw.FormDataContentType()},
		Body:            base64.StdEncoding.EncodeToString(buf.Bytes()),
		IsBase64Encoded: true,
	}
}

func checkCORS(t *testing.T, res events.APIGatewayProxyResponse) {
	t.Helper()

	if got := res.Headers["Access-Control-Allow-Origin"]; got != "*" {
		t.Errorf("wrong allow-origin header: %v", got)
	}
	if got := res.Headers["Access-Control-Allow-Methods"]; got != "POST, OPTIONS" {
		t.Errorf("wrong allow-methods header: %v", got)
	}
	if got := res.Headers["Access-Control-Allow-Headers"]; got != "Content-Type" {
		t.Errorf("wrong allow-headers header: %v", got)
	}
}

func TestHandlePreflight(t *testing.T) {

	desk := &mockDesk{}
	res, err := NewHandler(desk).Handle(&events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions})
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", res.StatusCode)
	}
	if res.Body != "" {
		t.Errorf("expected empty body, got %v", res.Body)
	}
	checkCORS(t, res)
	if desk.uploads != 0 || desk.tickets != 0 {
		t.Error("preflight must not reach the helpdesk")
	}
}

func TestHandleWrongMethod(t *testing.T) {

	res, err := NewHandler(&mockDesk{}).Handle(&events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %v", res.StatusCode)
	}
	if got := gjson.Get(res.Body, "error").Str; got != "Method not allowed" {
		t.Errorf("wrong error: %v", got)
	}
}

func TestHandleNoFile(t *testing.T) {

	desk := &mockDesk{}
	res, err := NewHandler(desk).Handle(formRequest(t, false))
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %v", res.StatusCode)
	}
	if got := gjson.Get(res.Body, "error").Str; got != "No file uploaded" {
		t.Errorf("wrong error: %v", got)
	}
	if desk.uploads != 0 || desk.tickets != 0 {
		t.Error("no upstream call expected without a file")
	}
}

func TestHandleBadContentType(t *testing.T) {

	req := &events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{}`,
	}

	desk := &mockDesk{}
	res, err := NewHandler(desk).Handle(req)
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %v", res.StatusCode)
	}
	if got := gjson.Get(res.Body, "error").Str; got != "Form submission failed" {
		t.Errorf("wrong error: %v", got)
	}
	if desk.uploads != 0 {
		t.Error("no upstream call expected on parse failure")
	}
}

func TestHandleUploadFailure(t *testing.T) {

	desk := &mockDesk{uploadErr: errors.New("upload failed with status 500")}
	res, err := NewHandler(desk).Handle(formRequest(t, true))
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %v", res.StatusCode)
	}
	if desk.tickets != 0 {
		t.Error("ticket creation must not be attempted after a failed upload")
	}
}

func TestHandleTicketFailure(t *testing.T) {

	tt := []struct {
		name      string
		deleteErr error
		details   string
	}{
		{name: "cleaned_up", details: "(cleaned up)"},
		{name: "cleanup_failed", deleteErr: errors.New("gone"), details: "needs manual reconciliation"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {

			desk := &mockDesk{
				ticketErr: errors.New("ticket creation failed with status 502"),
				deleteErr: tc.deleteErr,
			}
			res, err := NewHandler(desk).Handle(formRequest(t, true))
			if err != nil {
				t.Fatalf("could not call Handle: %v", err)
			}

			if res.StatusCode != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %v", res.StatusCode)
			}
			if desk.deletes != 1 {
				t.Errorf("expected one delete call, got %v", desk.deletes)
			}

			details := gjson.Get(res.Body, "details").Str
			if !strings.Contains(details, "https://acme.example-helpdesk.com/attachments/1") {
				t.Errorf("details missing attachment url: %v", details)
			}
			if !strings.Contains(details, tc.details) {
				t.Errorf("details missing cleanup outcome: %v", details)
			}
		})
	}
}

func TestHandleSuccess(t *testing.T) {

	desk := &mockDesk{}
	res, err := NewHandler(desk).Handle(formRequest(t, true))
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", res.StatusCode)
	}
	checkCORS(t, res)

	if !gjson.Get(res.Body, "success").Bool() {
		t.Error("expected success true")
	}
	if got := gjson.Get(res.Body, "ticketId").Int(); got != 42 {
		t.Errorf("expected ticket 42, got %v", got)
	}
	if got := gjson.Get(res.Body, "attachmentUrl").Str; got != "https://acme.example-helpdesk.com/attachments/1" {
		t.Errorf("wrong attachment url: %v", got)
	}
	if desk.uploads != 1 || desk.tickets != 1 || desk.deletes != 0 {
		t.Errorf("unexpected call counts: %v %v %v", desk.uploads, desk.tickets, desk.deletes)
	}
}

func TestHandleRawBody(t *testing.T) {

	// same submission without base64 encoding
	req := formRequest(t, true)
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		t.Fatalf("could not decode test body: %v", err)
	}
	req.Body = string(raw)
	req.IsBase64Encoded = false

	res, err := NewHandler(&mockDesk{}).Handle(req)
	if err != nil {
		t.Fatalf("could not call Handle: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status OK, got %v", res.StatusCode)
	}
}
