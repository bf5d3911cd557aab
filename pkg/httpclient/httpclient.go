package httpclient

import "net/http"

// HTTPDoer captures the subset of *http.Client the forwarding path
// relies on. Tests inject fake implementations so dispatch behavior
// can be verified without live backends.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
