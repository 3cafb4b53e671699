package dto

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeDecodeFailed     = "decode_failed"
	CodeInferenceFailed  = "inference_failed"
	CodePayloadTooLarge  = "payload_too_large"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeUnavailable      = "unavailable"
	CodeForbiddenOrigin  = "forbidden_origin"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthStatus is the body of the liveness probe.
type HealthStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Workers int    `json:"workers"`
	Classes int    `json:"classes"`
}
