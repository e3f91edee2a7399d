package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"meterease/internal/dto"
	"meterease/internal/logger"
	"meterease/internal/middleware"
	"meterease/internal/service/auth"
)

// SignupHandler handles POST /signup with a JSON body.
func SignupHandler(logger *logger.Logger, authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignupRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			respondError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		pair, err := authService.Signup(r.Context(), auth.SignupRequest{
			Name:            req.Name,
			MobileNumber:    req.MobileNumber,
			ServiceNumber:   req.ServiceNumber,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		})
		if err != nil {
			var verr *auth.ValidationError
			if errors.As(err, &verr) {
				respondError(w, verr.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("Signup failed: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		respondJSON(w, toTokenResponse(pair), http.StatusOK)
	}
}

// TokenHandler handles POST /token with form fields username and password.
func TokenHandler(logger *logger.Logger, authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondError(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		pair, err := authService.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
		if err != nil {
			if errors.Is(err, auth.ErrAuthFailure) {
				unauthorized(w, "Incorrect mobile number or password")
				return
			}
			logger.Error("Login failed: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		respondJSON(w, toTokenResponse(pair), http.StatusOK)
	}
}

// MeHandler handles GET /users/me for a bearer access token.
func MeHandler(logger *logger.Logger, authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.BearerToken(r)
		if !ok {
			unauthorized(w, "Not authenticated")
			return
		}

		user, err := authService.Me(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				unauthorized(w, "Could not validate credentials")
				return
			}
			logger.Error("Loading profile failed: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		resp := dto.UserResponse{Name: user.Name, MobileNumber: user.MobileNumber}
		if user.ServiceNumber != "" {
			resp.ServiceNumber = &user.ServiceNumber
		}
		respondJSON(w, resp, http.StatusOK)
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondError(w, message, http.StatusUnauthorized)
}

func toTokenResponse(pair *auth.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		RefreshToken: pair.RefreshToken,
	}
}
