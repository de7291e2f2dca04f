package hints

import (
	"encoding/json"
	"net/http"

	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// StanceResponse is the payload for GET /stance.
type StanceResponse struct {
	State   types.State `json:"state"`
	Classes []string    `json:"classes"`
}

// StanceHandler returns GET /stance — the stance of the calling request.
// It must run behind Middleware.
func StanceHandler(th stance.Thresholds) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonResp(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		s, ok := FromContext(r.Context())
		if !ok {
			jsonResp(w, http.StatusInternalServerError, map[string]string{"error": "stance not evaluated"})
			return
		}
		jsonResp(w, http.StatusOK, StanceResponse{State: s, Classes: stance.Classes(s, th)})
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
