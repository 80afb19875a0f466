package model

import "time"

// IdentityInfo stores information about registered participants in the system.
// The ActorID is an opaque principal string already authenticated by the peer;
// the chaincode only checks membership and ownership against it.
type IdentityInfo struct {
	ObjectType    string    `json:"objectType"`    // Set to the composite key object type (Identity)
	ActorID       string    `json:"actorId"`       // Unique principal identifier
	Alias         string    `json:"alias"`         // Short name for this identity, unique
	Roles         []string  `json:"roles"`         // Roles assigned to this identity
	RegisteredBy  string    `json:"registeredBy"`  // ActorID of the identity that registered this one
	RegisteredAt  time.Time `json:"registeredAt"`  // When the identity was registered
	LastUpdatedAt time.Time `json:"lastUpdatedAt"` // Last update to this record
}
