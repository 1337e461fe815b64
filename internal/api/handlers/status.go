package handlers

import (
	"net/http"

	"github.com/gitlab-mirror/mirrorauth/internal/api/middleware"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// StatusHandler serves GET /status for authenticated callers.
type StatusHandler struct {
	version string
}

// NewStatusHandler creates a status handler reporting version.
func NewStatusHandler(version string) *StatusHandler {
	return &StatusHandler{version: version}
}

// ServeHTTP implements http.Handler.
func (sh *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		middleware.WriteError(w, protocol.NewMissingTokenError())
		return
	}

	middleware.WriteOK(w, protocol.StatusResponse{
		Status:  "ok",
		Version: sh.version,
		User:    userInfo(p.User),
	})
}
