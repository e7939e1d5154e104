package systeminfo

import (
	"net/http"
	"time"
)

// CheckBackend reports whether a compute backend responds to a
// lightweight health probe within a short timeout. Used by /health to
// report STT/diarization reachability without blocking the request on
// a slow or down backend.
func CheckBackend(baseURL string) bool {
	if baseURL == "" {
		return false
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
