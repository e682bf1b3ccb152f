// Package notification reports fatal startup problems to a user who may not be
// looking at a console.
package notification

import (
	"log"
	"strings"
)

const (
	AppID         = "Region Select"
	maxMessageLen = 500
)

// Show displays a short non-blocking notification.
func Show(title, message string) {
	message = truncate(message)
	log.Printf("notification: %s: %s", title, message)
	showToast(title, message)
}

// ShowBlockingError shows title and message and returns once the user has
// dismissed them. Where no dialog is available it only logs.
func ShowBlockingError(title, message string) {
	message = truncate(message)
	log.Printf("%s: %s", title, message)
	showBlocking(title, message)
}

func truncate(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLen {
		return message[:maxMessageLen] + "..."
	}
	return message
}
