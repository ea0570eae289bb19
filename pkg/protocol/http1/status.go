package http1

import (
	"net/http"
	"strconv"
)

// ReasonPhrase returns the standard reason phrase for code. Codes without
// a registered phrase get the name of their class.
func ReasonPhrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	switch code / 100 {
	case 1:
		return "Informational"
	case 2:
		return "Successful"
	case 3:
		return "Redirection"
	case 4:
		return "Client Error"
	case 5:
		return "Server Error"
	default:
		return "Unknown Status"
	}
}

// StatusLine renders code as "<code> <reason>", e.g. "404 Not Found".
func StatusLine(code int) string {
	return strconv.Itoa(code) + " " + ReasonPhrase(code)
}

// ValidStatus reports whether code can appear on a status line.
func ValidStatus(code int) bool {
	return code >= 100 && code <= 999
}

// FinalStatus reports whether code can end an exchange. Interim 1xx codes
// cannot.
func FinalStatus(code int) bool {
	return code >= 200 && code <= 999
}

// bodyAllowed reports whether a response with this status may carry a body.
func bodyAllowed(code int) bool {
	switch {
	case code >= 100 && code < 200:
		return false
	case code == http.StatusNoContent, code == http.StatusNotModified:
		return false
	}
	return true
}
