package models

// CeremonyKind distinguishes the two passkey ceremonies. At most one ceremony
// of each kind may be in flight; beginning another one supersedes it.
type CeremonyKind string

const (
	CeremonyRegistration   CeremonyKind = "registration"
	CeremonyAuthentication CeremonyKind = "authentication"
)

// AuthPhase is the per-ceremony state. Transitions are strictly forward:
// Idle -> Began -> AwaitingPlatformResponse -> Completing -> Succeeded|Failed.
type AuthPhase string

const (
	PhaseIdle             AuthPhase = "idle"
	PhaseBegan            AuthPhase = "began"
	PhaseAwaitingPlatform AuthPhase = "awaiting_platform_response"
	PhaseCompleting       AuthPhase = "completing"
	PhaseSucceeded        AuthPhase = "succeeded"
	PhaseFailed           AuthPhase = "failed"
)

// Active reports whether a ceremony in this phase still holds a server-side
// session token that a new ceremony of the same kind must supersede.
func (p AuthPhase) Active() bool {
	return p == PhaseBegan || p == PhaseAwaitingPlatform || p == PhaseCompleting
}
