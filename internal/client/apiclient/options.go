package apiclient

import "net/http"

type options struct {
	authToken   string
	header      http.Header
	credentials Credentials
}

type Option func(*options)

// WithAuthToken adds "Authorization: Bearer <token>" unless the request
// already carries an Authorization header.
func WithAuthToken(token string) Option {
	return func(o *options) { o.authToken = token }
}

func WithHeader(key, value string) Option {
	return func(o *options) { o.header.Add(key, value) }
}

// WithJSON marks the body as JSON.
func WithJSON() Option {
	return WithHeader("Content-Type", "application/json")
}

func WithCredentials(mode Credentials) Option {
	return func(o *options) { o.credentials = mode }
}
