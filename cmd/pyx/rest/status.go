package rest

import (
	"fmt"
	"net/http"
)

type StatusCodeRange int

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", sc)
	}
}

func StatusCodeRangeOf(resp *http.Response) StatusCodeRange {
	sc := resp.StatusCode
	switch {
	case sc < 200:
		return Status1xx
	case sc < 300:
		return Status2xx
	case sc < 400:
		return Status3xx
	case sc < 500:
		return Status4xx
	case sc < 600:
		return Status5xx
	}
	return StatusUnknown
}

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

// messages for requests whose failure has no specific explanation.
func defaultMessages(action string, resp *http.Response) MessageFor {
	return MessageFor{
		Status3xx: fmt.Sprintf("%s is redirected unexpectedly (status code = %d)", action, resp.StatusCode),
		Status4xx: fmt.Sprintf("%s is rejected by pyx.ai (status code = %d)", action, resp.StatusCode),
		Status5xx: fmt.Sprintf("pyx.ai server error while %s (status code = %d)", action, resp.StatusCode),
	}
}
