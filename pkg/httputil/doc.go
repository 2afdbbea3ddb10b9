// Package httputil provides JSON helpers for the detour HTTP API.
//
// # Responses
//
// [WriteJSON] encodes a value with a status code. [WriteError] turns an
// error into a JSON body with a machine-readable code:
//
//	{"code": "NOT_FOUND", "message": "connector \"c1\" not found"}
//
// The status is derived from the [errors.Code] of the error by [Status];
// errors without a code are reported as 500 Internal Server Error.
//
// # Requests
//
// [DecodeJSON] reads a request body into a value, rejecting unknown fields,
// trailing data and bodies larger than [MaxBodySize].
package httputil
