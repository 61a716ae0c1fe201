package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	// StatusBotOngoing means the bot is handling the conversation (initial state)
	StatusBotOngoing ConversationStatus = "BOT_ONGOING"

	// StatusCSROngoing means the conversation has been handed off to a human agent
	StatusCSROngoing ConversationStatus = "CSR_ONGOING"

	// StatusResolved means the conversation has been closed
	StatusResolved ConversationStatus = "RESOLVED"
)

// IsValid reports whether s is a known conversation status
func (s ConversationStatus) IsValid() bool {
	switch s {
	case StatusBotOngoing, StatusCSROngoing, StatusResolved:
		return true
	}
	return false
}

// MessageSource identifies who authored a message
type MessageSource string

const (
	SourceUser MessageSource = "user"
	SourceBot  MessageSource = "bot"
	SourceCSR  MessageSource = "csr"
)

// IsValid reports whether s is a known message source
func (s MessageSource) IsValid() bool {
	switch s {
	case SourceUser, SourceBot, SourceCSR:
		return true
	}
	return false
}

// CSRAssignmentStatus is the state of one csr_info entry
type CSRAssignmentStatus string

const (
	CSRAssigned CSRAssignmentStatus = "Assigned"
	CSRInactive CSRAssignmentStatus = "Inactive"
)

// CSRInfo records one agent assignment on a conversation.
// Entries are append-only; only Status may flip afterwards.
type CSRInfo struct {
	CSRUID         uuid.UUID           `json:"csr_uid"`
	Name           string              `json:"name"`
	ProfilePicture string              `json:"profile_picture,omitempty"`
	Status         CSRAssignmentStatus `json:"status"`
	AssignedTime   time.Time           `json:"assigned_time"`
}

// MessageDetail is one message in a conversation, insertion-ordered
type MessageDetail struct {
	ID          uuid.UUID     `json:"id"`
	Source      MessageSource `json:"source"`
	MessageText string        `json:"message_text"`
	MediaURL    string        `json:"media_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Marker      string        `json:"marker,omitempty"`
}

// SessionStat records one connect/disconnect boundary
type SessionStat struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// UserDetails describes the end user of a conversation
type UserDetails struct {
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	ExternalUserID string `json:"external_user_id"`
}

// Feedback is the optional satisfaction payload attached after resolution
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ConversationDocument is the single JSON document held per conversation.
// While a conversation is live the document is owned by the Redis store;
// after a flush it is owned by the archive. It exists in exactly one of the
// two at any time.
type ConversationDocument struct {
	ConversationUUID   uuid.UUID          `json:"conversation_uuid"`
	ConversationStatus ConversationStatus `json:"conversation_status"`
	CSRHandOff         bool               `json:"csr_hand_off"`
	CSRInfo            []CSRInfo          `json:"csr_info"`
	UserDetails        UserDetails        `json:"user_details"`
	MessageDetails     []MessageDetail    `json:"message_details"`
	ConversationStats  []SessionStat      `json:"conversation_stats"`
	Feedback           *Feedback          `json:"feedback,omitempty"`
	ApplicationUUID    uuid.UUID          `json:"application_uuid"`
	CustomerUUID       uuid.UUID          `json:"customer_uuid"`
}

// LastMessage returns the most recently appended message, or nil
func (d *ConversationDocument) LastMessage() *MessageDetail {
	if len(d.MessageDetails) == 0 {
		return nil
	}
	return &d.MessageDetails[len(d.MessageDetails)-1]
}

// ActiveCSR returns the csr_info entry currently Assigned, or nil.
// At most one entry is Assigned at a time.
func (d *ConversationDocument) ActiveCSR() *CSRInfo {
	for i := range d.CSRInfo {
		if d.CSRInfo[i].Status == CSRAssigned {
			return &d.CSRInfo[i]
		}
	}
	return nil
}

// DeactivateCSRs flips every Assigned entry to Inactive
func (d *ConversationDocument) DeactivateCSRs() {
	for i := range d.CSRInfo {
		if d.CSRInfo[i].Status == CSRAssigned {
			d.CSRInfo[i].Status = CSRInactive
		}
	}
}

// AppendMessage appends a message, preserving insertion order
func (d *ConversationDocument) AppendMessage(msg MessageDetail) {
	d.MessageDetails = append(d.MessageDetails, msg)
}
