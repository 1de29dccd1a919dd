package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Directory errors (2000-2999)
	ErrTenantNotFound   = 2000
	ErrLocationNotFound = 2001
	ErrDeviceNotFound   = 2002

	// Asset errors (3000-3999)
	ErrAssetNotFound         = 3000
	ErrAssetEmptyFile        = 3001
	ErrAssetInvalidExtension = 3002
	ErrAssetFileTooLarge     = 3003
	ErrAssetStorageFailed    = 3004
	ErrAssetFileMissing      = 3005
	ErrAssetInvalidInput     = 3006

	// Playlist errors (4000-4999)
	ErrLinkNotFound       = 4000
	ErrLinkExists         = 4001
	ErrLinkTenantMismatch = 4002
	ErrLinkInvalidOrder   = 4003

	// Assignment errors (5000-5999)
	ErrDeviceNotAssigned  = 5000
	ErrAssignmentConflict = 5001
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Directory errors
	ErrTenantNotFound:   {ErrTenantNotFound, http.StatusNotFound, "Tenant not found"},
	ErrLocationNotFound: {ErrLocationNotFound, http.StatusNotFound, "Location not found"},
	ErrDeviceNotFound:   {ErrDeviceNotFound, http.StatusNotFound, "Device not found"},

	// Asset errors
	ErrAssetNotFound:         {ErrAssetNotFound, http.StatusNotFound, "Asset not found"},
	ErrAssetEmptyFile:        {ErrAssetEmptyFile, http.StatusBadRequest, "Uploaded file is empty"},
	ErrAssetInvalidExtension: {ErrAssetInvalidExtension, http.StatusBadRequest, "File extension not allowed"},
	ErrAssetFileTooLarge:     {ErrAssetFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrAssetStorageFailed:    {ErrAssetStorageFailed, http.StatusBadRequest, "Storage operation failed"},
	ErrAssetFileMissing:      {ErrAssetFileMissing, http.StatusNotFound, "Asset file not found"},
	ErrAssetInvalidInput:     {ErrAssetInvalidInput, http.StatusBadRequest, "Invalid asset input"},

	// Playlist errors
	ErrLinkNotFound:       {ErrLinkNotFound, http.StatusNotFound, "Playlist link not found"},
	ErrLinkExists:         {ErrLinkExists, http.StatusConflict, "Asset is already linked to this location"},
	ErrLinkTenantMismatch: {ErrLinkTenantMismatch, http.StatusBadRequest, "Asset and location must belong to the same tenant"},
	ErrLinkInvalidOrder:   {ErrLinkInvalidOrder, http.StatusBadRequest, "Order must be greater than or equal to 0"},

	// Assignment errors
	ErrDeviceNotAssigned:  {ErrDeviceNotAssigned, http.StatusNotFound, "Device is not assigned to a location"},
	ErrAssignmentConflict: {ErrAssignmentConflict, http.StatusConflict, "Device already has an open assignment"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" && details[0] != msg {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
