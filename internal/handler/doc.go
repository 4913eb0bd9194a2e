// Package handler provides the HTTP handlers for the engagement API.
//
// Each handler wraps one service behind a small interface declared here, so
// tests can drive it through httptest. Responses use the envelopes in
// response.go:
//
//   - WriteData: single resource with HATEOAS links
//   - WriteCollection: list with offset pagination
//   - WriteError: RFC 9457 problem details, built by MapServiceError
//
// Register mounts every route on a net/http ServeMux. All /v1 routes run
// behind the auth middleware; /v1/admin routes also require the admin role.
package handler
