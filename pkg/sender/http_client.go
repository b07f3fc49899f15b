package sender

import "net/http"

// HTTPClient posts JSON/HTTP notifications. *http.Client satisfies it; tests
// substitute one that fails every request.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
