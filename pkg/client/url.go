package client

import (
	"fmt"
	"net/url"
	"strings"
)

type urlBuilder struct {
	base       string
	path       string
	pathParams map[string]string
	query      url.Values
}

func (c *Client) url() *urlBuilder {
	return &urlBuilder{
		base:       c.baseURL,
		pathParams: make(map[string]string),
		query:      url.Values{},
	}
}

func (b *urlBuilder) setPath(path string) *urlBuilder {
	// a query string embedded in the path is merged with the explicit params
	if p, rawQuery, ok := strings.Cut(path, "?"); ok {
		path = p
		if parsed, err := url.ParseQuery(rawQuery); err == nil {
			b.addQuery(parsed)
		}
	}
	b.path = path
	return b
}

func (b *urlBuilder) setPathParam(key, value string) *urlBuilder {
	b.pathParams[key] = value
	return b
}

func (b *urlBuilder) addQueryParam(key string, value any) *urlBuilder {
	b.query.Add(key, fmt.Sprint(value))
	return b
}

func (b *urlBuilder) addQuery(values url.Values) *urlBuilder {
	for k, vs := range values {
		for _, v := range vs {
			b.addQueryParam(k, v)
		}
	}
	return b
}

func (b *urlBuilder) setPathParams(params map[string]string) *urlBuilder {
	for k, v := range params {
		b.setPathParam(k, v)
	}
	return b
}

func (b *urlBuilder) build() string {
	path := b.path
	for k, v := range b.pathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	full := b.base + path
	if len(b.query) > 0 {
		full += "?" + b.query.Encode()
	}
	return full
}
