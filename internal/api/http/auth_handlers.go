package http

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/auth"
	authmw "github.com/tepiprep/tepiprep/internal/auth/middleware"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

type credentialsReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type sessionResp struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      auth.User `json:"user"`
}

func issue(tokens *authmw.AuthService, u auth.User) (sessionResp, error) {
	tok, exp, err := tokens.IssueJWT(u.ID, u.Email, u.Role)
	if err != nil {
		return sessionResp{}, err
	}
	return sessionResp{Token: tok, ExpiresAt: exp, User: u}, nil
}

func SignUpHandler(accounts *auth.Accounts, tokens *authmw.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		u, err := accounts.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		resp, err := issue(tokens, u)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.Info("user signed up", zap.String("user_id", u.ID))
		writeJSON(w, http.StatusCreated, resp)
	}
}

func LoginHandler(accounts *auth.Accounts, tokens *authmw.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		u, err := accounts.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		resp, err := issue(tokens, u)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

const resetSentMsg = "Si un compte existe pour cet email, un lien de réinitialisation a été envoyé."

// ResetRequestHandler always answers the same way so accounts cannot be
// enumerated. Mail delivery is not wired; outside production the token is
// written to the log.
func ResetRequestHandler(accounts *auth.Accounts, log *zap.Logger, production bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Email == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		token, err := accounts.RequestReset(r.Context(), req.Email)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if token != "" && !production {
			log.Info("password reset token issued", zap.String("email", req.Email), zap.String("token", token))
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": resetSentMsg})
	}
}

type resetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func ResetConfirmHandler(accounts *auth.Accounts, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetConfirmReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Token == "" || req.Password == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		if err := accounts.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Votre mot de passe a été mis à jour."})
	}
}

// SessionHandler returns the signed-in user.
func SessionHandler(accounts *auth.Accounts, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := accounts.Get(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(accounts *auth.Accounts, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		var req changePasswordReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.OldPassword == "" || req.NewPassword == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		err := accounts.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, log, &apperr.Error{Kind: apperr.KindForbidden, Message: "Ancien mot de passe incorrect.", Err: err})
			return
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
