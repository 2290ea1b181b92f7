package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/netx"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type downloadResponse struct {
	RetrievalHandle string `json:"retrieval_handle"`
	FileName        string `json:"file_name"`
	FileSize        int64  `json:"file_size"`
	AccessCount     int64  `json:"access_count"`
	HandleExpiresAt string `json:"handle_expires_at"`
}

// download redeems the path token. Browsers get a redirect to the
// retrieval handle; API clients asking for JSON get the result body.
func (s *HTTPServer) download(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolver.ResolveDelivery(r.Context(), chi.URLParam(r, "token"), models.RequestInfo{
		Origin:            netx.ClientIP(r),
		ClientSignature:   r.UserAgent(),
		DeviceFingerprint: r.Header.Get(common.DeviceFingerprintHeader),
	})
	if err != nil {
		code, c := mapDomainError(err)
		if code == http.StatusInternalServerError {
			s.logger.Error(r.Context(), "resolve delivery failed", "error", err.Error())
		}
		if code == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, code, c, messageFor(code))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, downloadResponse{
			RetrievalHandle: res.RetrievalHandle,
			FileName:        res.FileName,
			FileSize:        res.FileSize,
			AccessCount:     res.AccessCount,
			HandleExpiresAt: res.HandleExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}
	http.Redirect(w, r, res.RetrievalHandle, http.StatusFound)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, common.ErrBlocked):
		return http.StatusForbidden, "BLOCKED"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrArtifactMissing):
		return http.StatusConflict, "ARTIFACT_MISSING"
	case common.IsRetryable(err):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func messageFor(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "invalid token"
	case http.StatusForbidden:
		return "delivery blocked"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "artifact missing"
	case http.StatusServiceUnavailable:
		return "storage unavailable"
	default:
		return "internal error"
	}
}
