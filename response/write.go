package response

import (
	"encoding/json"
	"net/http"
)

// WriteError writes e as a JSON body with its status code and headers
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	for key, values := range e.headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	writeJSON(w, e.StatusCode, e)
}

// WriteResponse writes v as a JSON body with status 200
func WriteResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
