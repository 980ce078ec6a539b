package arcgis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrNoJSON means the response carried no JSON payload at all.
	ErrNoJSON = eris.New("arcgis: no JSON payload in response")
	// ErrMalformed means a payload was found but is not a query response.
	ErrMalformed = eris.New("arcgis: malformed JSON payload")
)

// Feature is one row of a query result.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
}

// QueryResponse is the decoded body of a layer query.
type QueryResponse struct {
	Features []Feature `json:"features"`
}

// ServiceError is the error object ArcGIS returns with an HTTP 200.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *ServiceError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("arcgis: service error %d: %s (%s)", e.Code, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("arcgis: service error %d: %s", e.Code, e.Message)
}

// Is reports a service error as a malformed response.
func (e *ServiceError) Is(target error) bool { return target == ErrMalformed }

// DecodeError is a payload that is valid JSON but does not decode into a
// query response. It matches ErrMalformed and unwraps to the decoder error.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %s", ErrMalformed.Error(), e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports a decode failure as a malformed response.
func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }

// ExtractJSON returns the JSON payload of body. A body that is already JSON is
// returned as-is; otherwise the text of the first <pre> element is used, which
// is how browsers render a JSON document.
func ExtractJSON(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, ErrNoJSON
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed, nil
	}

	lower := bytes.ToLower(trimmed)
	open := bytes.Index(lower, []byte("<pre"))
	if open < 0 {
		return nil, ErrNoJSON
	}
	tagEnd := bytes.IndexByte(lower[open:], '>')
	if tagEnd < 0 {
		return nil, ErrNoJSON
	}
	start := open + tagEnd + 1
	end := bytes.Index(lower[start:], []byte("</pre>"))
	if end < 0 {
		return nil, ErrNoJSON
	}

	inner := strings.TrimSpace(html.UnescapeString(string(trimmed[start : start+end])))
	if inner == "" {
		return nil, ErrNoJSON
	}
	return []byte(inner), nil
}

// ParseQueryResponse extracts and decodes a query response. It returns
// ErrNoJSON, an error matching ErrMalformed (including *DecodeError and
// *ServiceError), or a response that may legitimately hold zero features.
func ParseQueryResponse(body []byte) (*QueryResponse, error) {
	payload, err := ExtractJSON(body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, eris.Wrapf(ErrMalformed, "invalid JSON (%d bytes)", len(payload))
	}

	var raw struct {
		Features *[]Feature    `json:"features"`
		Error    *ServiceError `json:"error"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if raw.Error != nil {
		return nil, raw.Error
	}
	if raw.Features == nil {
		return nil, eris.Wrap(ErrMalformed, "missing features array")
	}
	return &QueryResponse{Features: *raw.Features}, nil
}

// StringAttr returns attributes[key] as a trimmed string. Numbers are
// formatted without trailing zeros; nil and absent keys yield "".
func StringAttr(attributes map[string]any, key string) string {
	v, ok := attributes[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%g", t))
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
