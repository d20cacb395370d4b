// Package domain holds the types shared across the crypto core: actors,
// key records, operation/audit records, and the algorithm sum type. Core
// code only reads Actor; actor lifecycle is mutated by an external caller.
package domain

import "time"

// Role is the actor's privilege level.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleManager       Role = "manager"
	RoleStandard      Role = "standard"
)

// ActorStatus is whether an actor may currently act.
type ActorStatus string

const (
	ActorActive   ActorStatus = "active"
	ActorInactive ActorStatus = "inactive"
)

// Actor identifies the caller of a core operation.
type Actor struct {
	ID     int64
	Role   Role
	Status ActorStatus
}

// Algorithm is the closed sum type of key algorithms this core supports.
type Algorithm string

const (
	AlgorithmAES128CBC Algorithm = "AES-128-CBC"
	AlgorithmAES256CBC Algorithm = "AES-256-CBC"
	AlgorithmRSA2048    Algorithm = "RSA-2048"
	AlgorithmECCP256    Algorithm = "ECC-P256"
)

// Valid reports whether a is one of the four supported algorithms.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmAES128CBC, AlgorithmAES256CBC, AlgorithmRSA2048, AlgorithmECCP256:
		return true
	default:
		return false
	}
}

// KeyStatus is a KeyRecord's lifecycle state. Transitions are monotonic:
// active -> {revoked, expired}; no key ever returns to active.
type KeyStatus string

const (
	KeyActive  KeyStatus = "active"
	KeyRevoked KeyStatus = "revoked"
	KeyExpired KeyStatus = "expired"
)

// KeyRecord is the persisted representation of one managed key. Mutation is
// the exclusive responsibility of internal/keyregistry.
type KeyRecord struct {
	InternalID      int64      `json:"internal_id"`
	PublicID        string     `json:"public_id"`
	Owner           int64      `json:"owner"`
	Name            string     `json:"name"`
	Algorithm       Algorithm  `json:"algorithm"`
	WrappedMaterial []byte     `json:"wrapped_material"`
	WrapIV          []byte     `json:"wrap_iv"`
	Status          KeyStatus  `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}

// Redacted returns a copy of k with wrap material removed, the view
// external callers are allowed to see.
func (k KeyRecord) Redacted() KeyRecord {
	k.WrappedMaterial = nil
	k.WrapIV = nil
	return k
}

// OperationKind distinguishes successful cryptographic operations recorded
// in the operations store.
type OperationKind string

const (
	OperationEncrypt OperationKind = "encrypt"
	OperationDecrypt OperationKind = "decrypt"
)

// OperationOutcome is always success in the operations store; failures are
// not recorded there, only in the audit log.
type OperationOutcome string

const (
	OutcomeSuccess OperationOutcome = "success"
	OutcomeFailure OperationOutcome = "failure"
)

// OperationRecord is one successful encrypt/decrypt call. Immutable.
type OperationRecord struct {
	ID             int64
	Actor          int64
	KeyInternalID  *int64
	Kind           OperationKind
	Algorithm      Algorithm
	ResourceLabel  string
	Outcome        OperationOutcome
	Timestamp      time.Time
}

// AuditAction enumerates every action the audit log can record.
type AuditAction string

const (
	ActionUserLogin      AuditAction = "USER_LOGIN"
	ActionUserLogout     AuditAction = "USER_LOGOUT"
	ActionUserRegister   AuditAction = "USER_REGISTER"
	ActionUserUpdate     AuditAction = "USER_UPDATE"
	ActionDataEncrypt    AuditAction = "DATA_ENCRYPT"
	ActionDataDecrypt    AuditAction = "DATA_DECRYPT"
	ActionKeyGenerate    AuditAction = "KEY_GENERATE"
	ActionKeyRevoke      AuditAction = "KEY_REVOKE"
	ActionKeyBackup      AuditAction = "KEY_BACKUP"
	ActionKeyRestore     AuditAction = "KEY_RESTORE"
	ActionAnomalyDetected AuditAction = "ANOMALY_DETECTED"
	ActionAlertsCleared  AuditAction = "ALERTS_CLEARED"
)

// AuditStatus is the outcome recorded against an audit entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailed  AuditStatus = "FAILED"
	AuditWarning AuditStatus = "WARNING"
)

// AuditRecord is one append-only audit log entry. Immutable once written.
type AuditRecord struct {
	ID            int64                  `json:"id"`
	Actor         *int64                 `json:"actor,omitempty"`
	Action        AuditAction            `json:"action"`
	Resource      *string                `json:"resource,omitempty"`
	Status        AuditStatus            `json:"status"`
	ClientAddress *string                `json:"client_address,omitempty"`
	ClientAgent   *string                `json:"client_agent,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Seal          string                 `json:"seal"`
}
