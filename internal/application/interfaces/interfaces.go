package interfaces

import "net/http"

// HTTPHandler is the transport surface the server binds to.
type HTTPHandler interface {
	http.Handler
}
