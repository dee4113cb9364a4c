package client

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/oks-citadel/svcauth/internal/correlation"
)

// Response is a successful (status < 400) upstream response.
type Response struct {
	Status     int
	StatusText string

	// Data is the decoded JSON body, or the raw text for non-JSON bodies.
	Data    any
	Headers map[string]string

	body []byte
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	return r.body
}

// Into decodes the JSON body into v.
func (r *Response) Into(v any) error {
	if len(r.body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.body, v)
}

// Decode decodes the JSON body of resp into a T.
func Decode[T any](resp *Response) (T, error) {
	var v T
	err := resp.Into(&v)
	return v, err
}

func newResponse(resp *http.Response, body []byte) (*Response, error) {
	data, err := decodeBody(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Data:       data,
		Headers:    headers,
		body:       body,
	}, nil
}

func decodeBody(contentType string, body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if !isJSON(contentType) {
		return string(body), nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Join(errors.New("decoding response body"), err)
	}
	return data, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

func correlationFromResponse(resp *http.Response) string {
	return resp.Header.Get(correlation.Header)
}
