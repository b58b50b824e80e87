package dispatch

import (
	"net/http"
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch/logging"
)

// NewRunsHandler returns an HTTP handler exposing the run log via GET /api/dispatch/runs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewRunsHandler(store logging.RunStore, token string) http.Handler {
	return withToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := logging.RunQuery{
			Site:   r.URL.Query().Get("site"),
			Status: r.URL.Query().Get("status"),
		}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if records == nil {
			records = []logging.RunRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}))
}
