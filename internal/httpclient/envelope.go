package httpclient

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// APIError is a remote failure reported through the {code, msg} envelope, or
// a non-JSON error status.
type APIError struct {
	Status int
	Code   int64
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("remote error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("remote error (HTTP %d): %s", e.Status, e.Msg)
}

// DecodeEnvelope validates a {code, msg, ...} response and returns its parsed
// root. A nonzero code, a body that is not JSON, or an error status without
// an envelope all yield *APIError.
func DecodeEnvelope(resp *Response) (gjson.Result, error) {
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, &APIError{Status: resp.Status, Msg: truncate(string(resp.Body), 200)}
	}
	root := gjson.ParseBytes(resp.Body)
	code := root.Get("code")
	if !code.Exists() {
		if resp.Status >= 400 {
			return gjson.Result{}, &APIError{Status: resp.Status, Msg: truncate(string(resp.Body), 200)}
		}
		return root, nil
	}
	if code.Int() != 0 {
		return gjson.Result{}, &APIError{Status: resp.Status, Code: code.Int(), Msg: root.Get("msg").String()}
	}
	if resp.Status >= 400 {
		return gjson.Result{}, &APIError{Status: resp.Status, Msg: root.Get("msg").String()}
	}
	return root, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
