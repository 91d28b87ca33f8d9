// Package api is the wire boundary to the remote account service: a Client
// interface for the operations the subsystem needs, the request/response
// DTOs, and an HTTP implementation speaking the JSON envelope contract
// (success bodies are {"success":true,"data":...}, error bodies are
// {"error":{"code","message"}}).
//
// The transport is stateless request/response mapping. It performs no
// retries; retry policy lives with the callers (services package).
package api
