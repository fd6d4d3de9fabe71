package remote

import "fmt"

// TransportError reports that the backend could not be reached at all:
// connection refused, DNS failure, timeout or a cancelled context.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports that the backend answered with something unusable:
// a non-2xx status, malformed JSON or an unexpected document shape.
type ProtocolError struct {
	Op     string
	URL    string
	Status int // 0 when the status was fine and the body was bad
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: protocol: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: protocol: %v", e.Op, e.URL, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
