package models

import "time"

// Appointment is an append-only booking record; only Status and Version change.
type Appointment struct {
	ID          string    `json:"id"`
	SalonID     string    `json:"salon_id"`
	ClientID    string    `json:"client_id"`
	ServiceID   string    `json:"service_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// SlotKey identifies the (salon, scheduledAt) pair a confirmed appointment locks.
func (a *Appointment) SlotKey() string {
	return a.SalonID + "@" + a.ScheduledAt.UTC().Format(time.RFC3339)
}

// Slot is a generated time of day tagged free or busy. It is never stored.
type Slot struct {
	Time TimeOfDay `json:"time"`
	Busy bool      `json:"busy"`
}

// Role distinguishes salon staff from clients.
type Role string

const (
	RoleClient  Role = "client"
	RoleManager Role = "manager"
)

// Actor is the authenticated caller driving a booking operation.
type Actor struct {
	ID     string   `json:"id"`
	Role   Role     `json:"role"`
	Salons []string `json:"salons,omitempty"`
}

func (a Actor) IsManager() bool { return a.Role == RoleManager }

// Manages reports whether a manager actor may act on salonID. A manager
// without an explicit salon list manages every salon.
func (a Actor) Manages(salonID string) bool {
	if !a.IsManager() {
		return false
	}
	if len(a.Salons) == 0 {
		return true
	}
	for _, s := range a.Salons {
		if s == salonID {
			return true
		}
	}
	return false
}

// Notification is an inbox entry for a client or a salon's managers.
type Notification struct {
	ID            string    `json:"id"`
	RecipientID   string    `json:"recipient_id"`
	AppointmentID string    `json:"appointment_id"`
	Kind          string    `json:"kind"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// SalonInbox is the recipient id under which a salon's managers are notified.
func SalonInbox(salonID string) string {
	return "salon:" + salonID
}
