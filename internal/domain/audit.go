package domain

import "time"

const AuditChainVersion = "v1"

type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditReplace AuditAction = "replace"
	AuditDelete  AuditAction = "delete"
)

// AuditEvent records one content write. Events form a hash chain: each one
// commits to its predecessor's EventHash.
type AuditEvent struct {
	ID            string
	Seq           int64
	Action        AuditAction
	Collection    Collection
	DocumentID    string
	ActorHash     string
	PayloadHash   string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
