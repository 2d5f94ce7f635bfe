package handlers

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK wraps data in a success envelope
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps an error description in a failure envelope
func Fail(errText, message string) Response {
	return Response{Success: false, Error: errText, Message: message}
}
