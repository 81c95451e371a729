// Package formdata decodes a raw multipart/form-data body into named text
// fields and at most one file attachment.
package formdata

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"strings"
)

// File is a binary attachment decoded from a form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Form holds the decoded submission. At most one file is kept: when a body
// carries several file parts, the last one wins.
type Form struct {
	Fields map[string]string
	File   *File
}

// BoundaryFrom extracts the boundary token from a Content-Type header.
func BoundaryFrom(contentType string) (string, error) {

	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("failed to parse content type: %v", err)
	}
	if !strings.HasPrefix(mt, "multipart/") {
		return "", fmt.Errorf("not a multipart content type: %v", mt)
	}
	b, ok := params["boundary"]
	if !ok || b == "" {
		return "", fmt.Errorf("no boundary in content type")
	}
	return b, nil
}

// Decode reads every part of the body. Parts without a form name are
// skipped. A part with a filename becomes the file attachment, anything else
// a text field. Duplicate names overwrite, empty field values are dropped.
func Decode(body []byte, boundary string) (*Form, error) {

	if boundary == "" {
		return nil, fmt.Errorf("no boundary provided")
	}

	form := &Form{Fields: make(map[string]string)}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %v", err)
		}

		if part.FileName() != "" {
			data, err := ioutil.ReadAll(part)
			if err != nil {
				return nil, fmt.Errorf("failed to read file part: %v", err)
			}
			ct := part.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			form.File = &File{
				Name:        part.FileName(),
				ContentType: ct,
				Data:        data,
			}
			continue
		}

		name := part.FormName()
		if name == "" {
			continue
		}
		value, err := ioutil.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read field %v: %v", name, err)
		}
		if len(value) == 0 {
			continue
		}
		form.Fields[name] = string(value)
	}

	return form, nil
}
