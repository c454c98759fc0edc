package protocol

import (
	"time"

	"github.com/kilianp07/vmc/core/model"
)

// Message type discriminators.
const (
	TypeVend         = "vend"
	TypeStatus       = "status"
	TypeHealth       = "health"
	TypeVendResponse = "vend-response"
	TypeVendComplete = "vend-complete"
	TypeError        = "error"
)

// Human readable texts carried in the message field.
const (
	MsgVendingStarted   = "Vending started"
	MsgVendingCompleted = "Vending completed successfully"
	MsgVendingProgress  = "Vending in progress"
	MsgMachineIdle      = "Machine is idle"
	MsgBusy             = "Vending machine is currently busy"
	MsgInvalidItems     = "Invalid items array. Expected non-empty array of item numbers."
	MsgInvalidJSON      = "Invalid JSON"
	MsgRateLimited      = "Rate limit exceeded"
	StatusHealthy       = "healthy"
)

// TimestampLayout renders ISO-8601 UTC timestamps with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// Message is implemented by every outbound message.
type Message interface {
	MessageType() string
}

// StatusSnapshot is sent to an observer as soon as it connects.
type StatusSnapshot struct {
	Type   string       `json:"type"`
	Status model.Status `json:"status"`
	Items  []model.Item `json:"items"`
}

// StatusChange is broadcast when a vend starts.
type StatusChange struct {
	Type    string       `json:"type"`
	Status  model.Status `json:"status"`
	Items   []model.Item `json:"items"`
	Message string       `json:"message"`
}

// StatusReply answers a status query.
type StatusReply struct {
	Type        string       `json:"type"`
	Status      model.Status `json:"status"`
	Timestamp   string       `json:"timestamp"`
	Items       []model.Item `json:"items,omitempty"`
	ElapsedTime *int64       `json:"elapsedTime,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// VendResponse acknowledges or rejects a vend command.
type VendResponse struct {
	Type          string       `json:"type"`
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	Items         []model.Item `json:"items,omitempty"`
	CurrentItems  []model.Item `json:"currentItems,omitempty"`
	EstimatedTime int64        `json:"estimatedTime,omitempty"`
}

// VendComplete is broadcast once the dispensing delay has elapsed.
type VendComplete struct {
	Type        string       `json:"type"`
	Status      model.Status `json:"status"`
	Message     string       `json:"message"`
	VendedItems []model.Item `json:"vendedItems"`
	Timestamp   string       `json:"timestamp"`
}

// Health answers a liveness probe.
type Health struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Error reports a payload that could not be handled.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (StatusSnapshot) MessageType() string { return TypeStatus }
func (StatusChange) MessageType() string   { return TypeStatus }
func (StatusReply) MessageType() string    { return TypeStatus }
func (VendResponse) MessageType() string   { return TypeVendResponse }
func (VendComplete) MessageType() string   { return TypeVendComplete }
func (Health) MessageType() string         { return TypeHealth }
func (Error) MessageType() string          { return TypeError }

// NewStatusSnapshot builds the on-connect snapshot.
func NewStatusSnapshot(s model.Snapshot) StatusSnapshot {
	return StatusSnapshot{Type: TypeStatus, Status: s.Status, Items: model.CloneItems(s.Items)}
}

// NewVendingStarted builds the broadcast sent when a vend is accepted.
func NewVendingStarted(items []model.Item) StatusChange {
	return StatusChange{
		Type:    TypeStatus,
		Status:  model.StatusVending,
		Items:   model.CloneItems(items),
		Message: MsgVendingStarted,
	}
}

// NewStatusReply builds the answer to a status query at now.
func NewStatusReply(s model.Snapshot, now time.Time) StatusReply {
	r := StatusReply{Type: TypeStatus, Status: s.Status, Timestamp: Timestamp(now)}
	if s.Status != model.StatusVending {
		r.Message = MsgMachineIdle
		return r
	}
	elapsed := s.Elapsed(now).Milliseconds()
	r.Items = model.CloneItems(s.Items)
	r.ElapsedTime = &elapsed
	r.Message = MsgVendingProgress
	return r
}

// NewVendAccepted acknowledges a vend to its requester.
func NewVendAccepted(items []model.Item, estimated time.Duration) VendResponse {
	return VendResponse{
		Type:          TypeVendResponse,
		Success:       true,
		Message:       MsgVendingStarted,
		Items:         model.CloneItems(items),
		EstimatedTime: estimated.Milliseconds(),
	}
}

// NewVendBusy rejects a vend because current is still being dispensed.
func NewVendBusy(current []model.Item) VendResponse {
	return VendResponse{
		Type:         TypeVendResponse,
		Message:      MsgBusy,
		CurrentItems: model.CloneItems(current),
	}
}

// NewVendInvalid rejects a vend with unusable items.
func NewVendInvalid() VendResponse {
	return VendResponse{Type: TypeVendResponse, Message: MsgInvalidItems}
}

// NewVendComplete builds the completion broadcast.
func NewVendComplete(vended []model.Item, at time.Time) VendComplete {
	return VendComplete{
		Type:        TypeVendComplete,
		Status:      model.StatusIdle,
		Message:     MsgVendingCompleted,
		VendedItems: model.CloneItems(vended),
		Timestamp:   Timestamp(at),
	}
}

// NewHealth builds a liveness reply for service.
func NewHealth(service string, at time.Time) Health {
	return Health{Type: TypeHealth, Status: StatusHealthy, Service: service, Timestamp: Timestamp(at)}
}

// NewError builds an error reply.
func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}
