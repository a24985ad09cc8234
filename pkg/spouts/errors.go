package spouts

import "fmt"

// FetchError reports a remote-service failure during Load: auth rejected,
// rate limited, network unreachable or a malformed response. It carries
// enough context for the caller to decide between retrying on the next
// cycle and surfacing a configuration problem.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
