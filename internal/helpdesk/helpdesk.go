// Package helpdesk makes the outbound calls to the helpdesk API: attachment
// upload, ticket creation and best-effort attachment deletion.
package helpdesk

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/deskdrop/deskdrop/internal/client"
	"github.com/deskdrop/deskdrop/internal/config"
	"github.com/deskdrop/deskdrop/internal/formdata"
)

// Attachment describes a file accepted by the helpdesk upload endpoint
type Attachment struct {
	URL         string
	Name        string
	Size        int64
	ContentType string
}

// Service calls the helpdesk API for one subdomain
type Service struct {
	cfg     config.Config
	baseURL *url.URL
}

// NewService returns a Service for the configured subdomain
func NewService(cfg config.Config) (*Service, error) {

	u, err := url.Parse(fmt.Sprintf("https://%s.example-helpdesk.com", cfg.Subdomain))
	if err != nil {
		return nil, fmt.Errorf("could not form helpdesk URL: %v", err)
	}
	return &Service{cfg: cfg, baseURL: u}, nil
}

// NewServiceAt returns a Service talking to an explicit base URL. Used by
// tests and local runs against a stand-in server.
func NewServiceAt(cfg config.Config, base string) (*Service, error) {

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("could not parse base URL: %v", err)
	}
	return &Service{cfg: cfg, baseURL: u}, nil
}

func (s *Service) newClient() *client.Client {
	return &client.Client{
		BaseURL:    s.baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// UploadAttachment uploads the decoded file and returns its helpdesk location
func (s *Service) UploadAttachment(f *formdata.File) (*Attachment, error) {

	c := s.newClient()

	req, err := c.NewUploadRequest("/api/upload?type=attachment", s.cfg.Username, s.cfg.APIKey, f.Name, f.ContentType, f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to make upload request: %v", err)
	}

	res, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call helpdesk: %v", err)
	}
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response body: %v", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("upload failed with status %v: %v", res.StatusCode, string(body))
	}

	u := gjson.GetBytes(body, "url").Str
	if u == "" {
		return nil, fmt.Errorf("upload succeeded but helpdesk returned no url")
	}

	att := &Attachment{
		URL:         u,
		Name:        gjson.GetBytes(body, "name").Str,
		Size:        gjson.GetBytes(body, "size").Int(),
		ContentType: gjson.GetBytes(body, "content_type").Str,
	}
	fmt.Printf("uploaded attachment %v (%v bytes)\n", att.Name, att.Size)
	return att, nil
}

// CreateTicket opens a ticket carrying the submitted fields and a link to
// the uploaded attachment, and returns the new ticket identifier.
func (s *Service) CreateTicket(form *formdata.Form, att *Attachment) (int64, error) {

	c := s.newClient()

	payload, err := ticketPayload(s.cfg, form, att)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal ticket payload: %v", err)
	}

	req, err := c.NewRequest("/api/tickets", "POST", s.cfg.Username, s.cfg.APIKey, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to make ticket request: %v", err)
	}

	res, err := c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call helpdesk: %v", err)
	}
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read ticket response body: %v", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, fmt.Errorf("ticket creation failed with status %v: %v", res.StatusCode, string(body))
	}

	id := gjson.GetBytes(body, "id")
	if !id.Exists() {
		return 0, fmt.Errorf("ticket created but helpdesk returned no identifier")
	}
	fmt.Printf("helpdesk returned ticket identifier: %v\n", id.Int())
	return id.Int(), nil
}

// DeleteAttachment removes an uploaded attachment. Called when ticket
// creation fails, so the upload is not left orphaned.
func (s *Service) DeleteAttachment(att *Attachment) error {

	c := s.newClient()

	req, err := c.NewRequest("/api/upload?type=attachment&url="+url.QueryEscape(att.URL), "DELETE", s.cfg.Username, s.cfg.APIKey, nil)
	if err != nil {
		return fmt.Errorf("failed to make delete request: %v", err)
	}

	res, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call helpdesk: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("attachment deletion failed with status %v", res.StatusCode)
	}
	return nil
}
