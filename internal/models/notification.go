package models

type (
	NotificationType    string // Тип уведомления
	NotificationChannel string // Канал доставки
)

const (
	OfferReceivedNotification    NotificationType = "OFFER_RECEIVED"
	OfferAcceptedNotification    NotificationType = "OFFER_ACCEPTED"
	OfferRejectedNotification    NotificationType = "OFFER_REJECTED"
	OfferShortlistedNotification NotificationType = "OFFER_SHORTLISTED"
	OfferWithdrawnNotification   NotificationType = "OFFER_WITHDRAWN"
	TenderPublishedNotification  NotificationType = "TENDER_PUBLISHED"
	TenderAwardedNotification    NotificationType = "TENDER_AWARDED"
	TenderCancelledNotification  NotificationType = "TENDER_CANCELLED"
	TenderMatchNotification      NotificationType = "TENDER_MATCH"

	InAppChannel NotificationChannel = "in_app"
	EmailChannel NotificationChannel = "email"
)

// Notification - содержимое уведомления для организации.
type Notification struct {
	Type     NotificationType  `json:"type"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NotificationIntent - намерение отправить уведомление после фиксации перехода.
type NotificationIntent struct {
	Channel        NotificationChannel
	OrganizationID string
	ExcludeUserID  string
	Notification   Notification
}
