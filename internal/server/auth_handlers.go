package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/auth"
	"github.com/GoliathLabs/applica/internal/logging"
)

// LoginService authenticates credentials and issues a session.
type LoginService interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type verifyResponse struct {
	User *auth.SessionClaims `json:"user"`
}

// HandleLogin validates the body and runs the directory login. The login is
// detached from the client connection: directory operations finish or time
// out on their own and the result is dropped if the client has gone away.
func HandleLogin(svc LoginService, validator *LoginValidator, bodyLimit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bodyLimit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				apierr.Write(w, r, apierr.PayloadTooLarge(tooLarge.Limit))
				return
			}
			apierr.Write(w, r, apierr.BadRequest("", err))
			return
		}

		if msg, err := validator.Validate(bytes.NewReader(raw)); err != nil {
			apierr.Write(w, r, apierr.BadRequest(msg, err))
			return
		}

		var req loginRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			apierr.Write(w, r, apierr.BadRequest("", err))
			return
		}

		res, err := svc.Login(context.WithoutCancel(r.Context()), auth.Credentials{
			Username: req.UserName,
			Password: req.Password,
		})
		if r.Context().Err() != nil {
			logging.FromContext(r.Context()).WithField(logging.FieldUsername, req.UserName).
				Debug("client went away during login, discarding result")
			return
		}
		if err != nil {
			apierr.Write(w, r, err)
			return
		}
		apierr.WriteJSON(w, http.StatusOK, res)
	}
}

// HandleVerify returns the claims attached by the session middleware.
func HandleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apierr.Write(w, r, apierr.TokenInvalid(errors.New("no session claims on request")))
			return
		}
		apierr.WriteJSON(w, http.StatusOK, verifyResponse{User: claims})
	}
}
