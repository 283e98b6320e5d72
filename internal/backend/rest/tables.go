package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/librarydesk/librarian/internal/backend"
)

// Execute implements backend.Transport.
func (t *Transport) Execute(ctx context.Context, req backend.Request) (json.RawMessage, error) {
	query, err := encodeQuery(req)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	var method string
	switch req.Method {
	case backend.MethodSelect:
		method = http.MethodGet
	case backend.MethodInsert:
		method = http.MethodPost
	case backend.MethodUpdate:
		method = http.MethodPatch
	case backend.MethodDelete:
		method = http.MethodDelete
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}
	if req.Method != backend.MethodSelect {
		if req.Returning {
			headers["Prefer"] = "return=representation"
		} else {
			headers["Prefer"] = "return=minimal"
		}
	}

	var body []byte
	if len(req.Body) > 0 {
		body = req.Body
	}

	data, err := t.do(ctx, method, "/rest/v1/"+url.PathEscape(req.Table), query, body, req.AccessToken, headers)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return json.RawMessage("[]"), nil
	}
	return data, nil
}

// encodeQuery renders PostgREST query parameters:
// select=cols, col=eq.value, order=a.asc,b.desc.
func encodeQuery(req backend.Request) (url.Values, error) {
	q := url.Values{}
	if req.Columns != "" && (req.Method == backend.MethodSelect || req.Returning) {
		q.Set("select", req.Columns)
	}
	for _, f := range req.Filters {
		v, err := filterValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Column, err)
		}
		q.Add(f.Column, "eq."+v)
	}
	if len(req.Orders) > 0 {
		parts := make([]string, len(req.Orders))
		for i, o := range req.Orders {
			dir := "desc"
			if o.Ascending {
				dir = "asc"
			}
			parts[i] = o.Column + "." + dir
		}
		q.Set("order", strings.Join(parts, ","))
	}
	return q, nil
}

func filterValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case nil:
		return "", fmt.Errorf("nil value")
	default:
		return fmt.Sprint(x), nil
	}
}
