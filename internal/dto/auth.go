package dto

// SignupRequest is the JSON body of POST /signup.
type SignupRequest struct {
	Name            string `json:"name"`
	MobileNumber    string `json:"mobile_number"`
	ServiceNumber   string `json:"service_number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// TokenResponse is returned by /signup and /token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is returned by GET /users/me.
type UserResponse struct {
	Name          string  `json:"name"`
	MobileNumber  string  `json:"mobile_number"`
	ServiceNumber *string `json:"service_number"`
}
