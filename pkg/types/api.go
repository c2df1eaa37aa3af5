package types

// ModelAnswer is the structured output the VLM is asked to produce.
// Both keys are required and no other keys are accepted.
type ModelAnswer struct {
	// Whether the image shows the situation described by the task.
	Match bool `json:"match" jsonschema:"title=Match,description=Whether the image matches the task"`
	// Rationale for the decision.
	Reason string `json:"reason" jsonschema:"title=Reason,description=Explanation for the decision"`
}

// VerificationResponse is returned by POST /api/v1/verify.
type VerificationResponse struct {
	// Whether the image matches the task description.
	// example: true
	Match bool `json:"match" example:"true"`
	// Explanation for the verification result, copied from the model.
	// example: 检测到图像中人员拥挤的情况。
	Reason string `json:"reason" example:"检测到图像中人员拥挤的情况。"`
	// Wall-clock seconds spent on the whole pipeline, including queueing.
	// example: 0.523
	ProcessingTime float64 `json:"processing_time" example:"0.523"`
}

// VerifyJSONRequest is the JSON variant of a verification request, used by
// POST /api/v1/verify with application/json and by the NATS transport.
type VerifyJSONRequest struct {
	// Task description, 1 to 500 characters.
	// example: 出现人员拥挤的情况。
	TaskDescription string `json:"task_description" example:"出现人员拥挤的情况。"`
	// Standard base64 encoded image bytes.
	ImageBase64 string `json:"image_base64"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: task_description must be between 1 and 500 characters
	Error string `json:"error" example:"task_description must be between 1 and 500 characters"`
	// HTTP status code equivalent.
	// example: 400
	Code int `json:"code" example:"400"`
}

// VerifyReply is the NATS reply envelope. Exactly one field is set.
type VerifyReply struct {
	Result *VerificationResponse `json:"result,omitempty"`
	Error  *ErrorResponse        `json:"error,omitempty"`
}

// GateStatus is a snapshot of the admission gate.
type GateStatus struct {
	Capacity int `json:"capacity" example:"10"`
	InFlight int `json:"in_flight" example:"2"`
	Waiting  int `json:"waiting" example:"0"`
	Peak     int `json:"peak" example:"7"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Upstream model identifier.
	// example: Qwen/Qwen2-VL-7B-Instruct
	Model string     `json:"model" example:"Qwen/Qwen2-VL-7B-Instruct"`
	Gate  GateStatus `json:"gate"`
	// Outcome counts since process start.
	Outcomes map[string]uint64 `json:"outcomes"`
}
