package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/codeando/internal/identity"
	"golang.org/x/crypto/bcrypt"
)

// TeacherPINHeader carries the PIN when it is not sent in the body.
const TeacherPINHeader = "X-Teacher-PIN"

type teacherModeRequest struct {
	Enabled bool   `json:"enabled"`
	PIN     string `json:"pin"`
}

// GetTeacherMode reports whether the learner has teacher mode enabled.
func (h *Handler) GetTeacherMode(w http.ResponseWriter, r *http.Request) {
	user, err := h.repo.GetUser(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		fail(w, r, "Get teacher mode", err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{
		"enabled":      user != nil && user.TeacherMode,
		"pin_required": h.opts.TeacherPINHash != "",
	})
}

// SetTeacherMode enables or disables teacher mode. Enabling requires the PIN
// when one is configured.
func (h *Handler) SetTeacherMode(w http.ResponseWriter, r *http.Request) {
	var req teacherModeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		fail(w, r, "Set teacher mode", err)
		return
	}

	if req.PIN == "" {
		req.PIN = r.Header.Get(TeacherPINHeader)
	}

	userID := identity.UserIDFromContext(r.Context())
	if req.Enabled && h.opts.TeacherPINHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(h.opts.TeacherPINHash), []byte(req.PIN)); err != nil {
			slog.Warn("Rejected teacher mode PIN", "user_id", userID, "ip", identity.IPFromRequest(r))
			Error(w, http.StatusForbidden, "invalid PIN")
			return
		}
	}

	if err := h.repo.SetTeacherMode(r.Context(), userID, req.Enabled); err != nil {
		fail(w, r, "Set teacher mode", err)
		return
	}
	slog.Info("Teacher mode changed", "user_id", userID, "enabled", req.Enabled)
	JSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}
