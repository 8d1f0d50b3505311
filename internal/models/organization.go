package models

type Role string // Роль пользователя в организации

const (
	OwnerRole  Role = "Owner"
	AdminRole  Role = "Admin"
	EditorRole Role = "Editor"
	ViewerRole Role = "Viewer"
)

// SystemUserID - идентификатор, под которым платёжная система выполняет переходы.
const SystemUserID = "system:payment"

// Organization представляет модель организации.
type Organization struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	City         string `json:"city"`
	Canton       string `json:"canton"`
	ContactEmail string `json:"contactEmail"`
}

// Membership описывает роль пользователя в организации.
type Membership struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Role           Role   `json:"role"`
}

// Actor - пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID      string
	Memberships []Membership
	System      bool
}

// SystemActor возвращает актора платёжной системы.
func SystemActor() Actor {
	return Actor{UserID: SystemUserID, System: true}
}

// RoleIn возвращает роль актора в организации.
func (a Actor) RoleIn(organizationID string) (Role, bool) {
	for _, m := range a.Memberships {
		if m.OrganizationID == organizationID {
			return m.Role, true
		}
	}
	return "", false
}

// BelongsTo сообщает, состоит ли актор в организации.
func (a Actor) BelongsTo(organizationID string) bool {
	_, ok := a.RoleIn(organizationID)
	return ok
}
