package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
)

type MessageFor map[StatusCodeRange]string

// unmarshal http response which has json content.
//
// args:
//   - resp: http response to be processed.
//   - v: value which response should be.
//   - messageFor: title of error message for HTTP status code range.
//
// return:
//
//	error (ErrTransport) if...
//	- can not read response body
//	- response body is not shaped of v
//	- status code is not 1xx nor 2xx
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			message := fmt.Sprintf("unexpected response: %s (status code = %d)", err.Error(), resp.StatusCode)
			return perrors.NewCuiError(
				message,
				perrors.WithKind(perrors.ErrTransport),
				perrors.WithCause(err),
			)
		}
		return nil
	}

	return errorResponse(resp, messageFor)
}

// unmarshalRawResponse returns the body of successful response as it is.
//
// The body should be a JSON object.
func unmarshalRawResponse(resp *http.Response, messageFor MessageFor) ([]byte, error) {
	raw := json.RawMessage{}
	if err := unmarshalJsonResponse(resp, &raw, messageFor); err != nil {
		return nil, err
	}
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, perrors.NewCuiError(
			fmt.Sprintf("unexpected response: not a JSON object (status code = %d)", resp.StatusCode),
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithCause(err),
		)
	}
	return raw, nil
}

func unmarshalStreamResponse(resp *http.Response, messageFor MessageFor) (io.ReadCloser, error) {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		return resp.Body, nil
	}
	return nil, errorResponse(resp, messageFor)
}

func unmarshalResponseDiscardingPayload(resp *http.Response, messageFor MessageFor) error {
	rc, err := unmarshalStreamResponse(resp, messageFor)
	if rc != nil {
		io.Copy(io.Discard, rc)
		rc.Close()
	}
	return err
}

// errorResponse builds an error from a failed response.
//
// Message from the server is put into the detail of the error.
func errorResponse(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	message, ok := messageFor[scr]
	if !ok {
		message = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return perrors.NewCuiError(
			fmt.Sprintf(
				"%s\ncannot read server message: %s",
				message, err.Error(),
			),
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithCause(err),
		)
	}

	detail := parseErrorMessage(body)
	if detail == "" {
		return perrors.NewCuiError(message, perrors.WithKind(perrors.ErrTransport))
	}
	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    detail,
		CUIError: perrors.NewCuiError(
			message,
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithDetail(func(summary string) (string, error) {
				return summary + "\n" + detail, nil
			}),
		),
	}
}

// ServerError is an error response with a message from pyx.ai.
type ServerError struct {
	perrors.CUIError

	StatusCode int

	// message from pyx.ai
	Message string
}

func (se *ServerError) Unwrap() error {
	return se.CUIError
}

// keys of messages in error responses from pyx.ai, in order of preference.
var messageKeys = []string{"status_msg", "message", "detail", "error"}

// parseErrorMessage extracts human readable message from error response body.
func parseErrorMessage(body []byte) string {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range messageKeys {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
			if detail, err := json.MarshalIndent(json.RawMessage(raw), "", "    "); err == nil {
				return string(detail)
			}
		}
	}
	return strings.TrimSpace(string(body))
}
