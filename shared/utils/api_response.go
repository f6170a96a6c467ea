package utils

import "time"

type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Total     *int      `json:"total,omitempty"`
}

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}
}

// CreateRetryableErrorResponse marks failures the client should retry later,
// such as a record store timeout.
func CreateRetryableErrorResponse(code, message string) ErrorResponse {
	resp := CreateErrorResponse(code, message)
	resp.Error.Retryable = true
	return resp
}

func CreateFieldErrorResponse(code, message string, fields map[string]string) ErrorResponse {
	resp := CreateErrorResponse(code, message)
	resp.Error.Fields = fields
	return resp
}

func CreateSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Timestamp: time.Now(),
		},
	}
}

func CreateListResponse(data any, total int) SuccessResponse {
	resp := CreateSuccessResponse(data)
	resp.Meta.Total = &total
	return resp
}
