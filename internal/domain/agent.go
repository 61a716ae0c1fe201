package domain

import (
	"github.com/google/uuid"
)

// Agent is a CSR agent profile as registered on the presence set
type Agent struct {
	CSRUID         uuid.UUID `json:"csr_uid"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
}

// AssignmentCandidate is an online agent with its current assigned-conversation count
type AssignmentCandidate struct {
	CSRUID         uuid.UUID `json:"csr_uid"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CurrentLoad    int       `json:"current_load"`
}
