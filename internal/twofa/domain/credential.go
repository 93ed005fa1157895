package domain

// Credential is whatever the caller presented to prove account ownership.
// Local accounts need Password, OAuth accounts need OAuthAccessToken.
type Credential struct {
	Password         string
	OAuthAccessToken string
}
