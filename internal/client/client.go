// Package client provides the HTTP client used for helpdesk API calls.
package client

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Client is a HTTP client
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
}

// NewRequest creates a JSON HTTP request with basic auth
func (c *Client) NewRequest(path, method, user, pass string, body []byte) (*http.Request, error) {

	p, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u := c.BaseURL.ResolveReference(p)

	req, err := http.NewRequest(method, u.String(), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	req.SetBasicAuth(user, pass)

	return req, nil
}

// NewUploadRequest creates a multipart HTTP request with basic auth,
// carrying the given data as a single "file" part.
func (c *Client) NewUploadRequest(path, user, pass, filename, contentType string, data []byte) (*http.Request, error) {

	p, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u := c.BaseURL.ResolveReference(p)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)

	fw, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %v", err)
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	req.SetBasicAuth(user, pass)

	return req, nil
}

// Do makes a HTTP request
func (c *Client) Do(req *http.Request) (*http.Response, error) {

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, err
}
