// Package httpmw holds the outer HTTP middleware of the storefront server.
//
// These run before the request pipeline (see package pipeline) and deal only
// with transport concerns: security headers, request IDs, client IP
// resolution, panic recovery, body limits, trace headers and structured
// access logging. Composition order lives in httpserver.NewHandler.
//
// Query strings, cookies and form values are never logged.
package httpmw
