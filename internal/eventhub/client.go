package eventhub

import "cleancity/backend/internal/models"

// Client is one live subscriber to lifecycle events.
type Client interface {
	// GetUserID returns the identity the subscriber authenticated as.
	GetUserID() string
	// GetRole decides which events the hub routes to the subscriber.
	GetRole() models.Role

	// GetSendChannel returns the channel the hub delivers events on. The hub
	// closes it when it drops the client.
	GetSendChannel() chan<- models.ComplaintEvent

	// Run starts the client's read and write pumps.
	Run()
}
