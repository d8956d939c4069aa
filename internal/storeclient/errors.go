package storeclient

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from the storage API.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storeclient: %s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("storeclient: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// NetworkError is a request that produced no usable response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("storeclient: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the storage API.
func IsNotFound(err error) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.Status == http.StatusNotFound
}
