// Package models defines the data records and the error taxonomy shared by
// the account subsystem: accounts, passkey credential projections, sessions,
// and the ceremony phase machinery.
package models

import "time"

// Account is the server-owned account record. It is replaced wholesale on
// every successful ceremony or profile fetch and never partially mutated.
type Account struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"displayName"`
	Bio         string       `json:"bio,omitempty"`
	Credentials []Credential `json:"credentials,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Credential is a read-only projection of a server-held passkey.
type Credential struct {
	CredentialID string     `json:"credentialId"`
	Nickname     string     `json:"nickname,omitempty"`
	DeviceInfo   string     `json:"deviceInfo,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}
