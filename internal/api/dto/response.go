package dto

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK wraps data in a success envelope.
func OK(data any) Response {
	return Response{Code: "OK", Message: "success", Data: data}
}

// Fail builds an error envelope; data is always null.
func Fail(code, message string) Response {
	return Response{Code: code, Message: message}
}
