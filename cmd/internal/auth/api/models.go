package authapi

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
}

type authResponse struct {
	User             userResponse `json:"user"`
	AccessToken      string       `json:"accessToken"`
	RefreshToken     string       `json:"refreshToken"`
	ExpiresInSeconds int64        `json:"expiresInSeconds"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type purgeResponse struct {
	Purged int64 `json:"purged"`
}
