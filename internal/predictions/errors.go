package predictions

import "fmt"

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	// KindTransport covers network failures, timeouts and non-2xx statuses.
	KindTransport ErrorKind = iota + 1
	// KindMalformedResponse covers bodies that are not the expected JSON shape.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// FetchError is returned by Client.Fetch for every failure.
type FetchError struct {
	Kind   ErrorKind
	Agency string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch for agency %s: %v", e.Kind, e.Agency, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is the cause of a Transport FetchError raised by an HTTP status.
type StatusError struct {
	URL        string
	Status     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

func transportError(agency string, err error) *FetchError {
	return &FetchError{Kind: KindTransport, Agency: agency, Err: err}
}

func malformedError(agency string, err error) *FetchError {
	return &FetchError{Kind: KindMalformedResponse, Agency: agency, Err: err}
}
