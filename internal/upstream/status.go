package upstream

import (
	"fmt"
	"net/http"

	resty "github.com/go-resty/resty/v2"
)

var statusMeanings = map[int]string{
	http.StatusOK:                  "OK - The request was successful.",
	http.StatusCreated:             "Created - A resource was created.",
	http.StatusNoContent:           "No Content - The request was successful, but there is no content. Please, verify if the date and satellite IDs selected are correct.",
	http.StatusBadRequest:          "Bad Request - The request was invalid.",
	http.StatusUnauthorized:        "Unauthorized - Authentication failed.",
	http.StatusForbidden:           "Forbidden - You do not have permission.",
	http.StatusNotFound:            "Not Found - The resource could not be found.",
	http.StatusInternalServerError: "Internal Server Error - The server encountered an error.",
	http.StatusBadGateway:          "Bad Gateway - Invalid response from the upstream server.",
	http.StatusServiceUnavailable:  "Service Unavailable - The server is overloaded or down.",
	http.StatusGatewayTimeout:      "Gateway Timeout - The server timed out waiting for the upstream server.",
}

// Meaning describes an HTTP status code for provider error messages.
func Meaning(code int) string {
	if m, ok := statusMeanings[code]; ok {
		return m
	}
	return "Unknown error occurred"
}

// StatusError is returned for every provider response other than 200.
type StatusError struct {
	Code    int
	Meaning string
	URL     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Code, e.Meaning)
}

// CheckResponse returns a *StatusError unless the response is a 200.
func CheckResponse(resp *resty.Response) error {
	if resp == nil {
		return &StatusError{Meaning: Meaning(0)}
	}
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	url := ""
	if resp.Request != nil {
		url = resp.Request.URL
	}
	return &StatusError{Code: resp.StatusCode(), Meaning: Meaning(resp.StatusCode()), URL: url}
}
