package models

// Session is the durable authentication state for this device: the token
// pair issued by the account service and the account they belong to.
// Exactly one session exists at a time; it is replaced wholesale, never
// field-by-field.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	AccountID    string `json:"accountId"`
}

// Tokens is the access/refresh pair as it appears on the wire.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
