//go:build windows

package notification

import (
	"log"

	"github.com/go-toast/toast"
	"golang.org/x/sys/windows"
)

const (
	mbOK        = 0x00000000
	mbIconError = 0x00000010
	mbTopmost   = 0x00040000
)

func showBlocking(title, message string) {
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return
	}
	messagePtr, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return
	}
	if _, err := windows.MessageBox(0, messagePtr, titlePtr, mbOK|mbIconError|mbTopmost); err != nil {
		log.Printf("notification: MessageBox failed: %v", err)
	}
}

func showToast(title, message string) {
	go func() {
		n := toast.Notification{
			AppID:   AppID,
			Title:   title,
			Message: message,
		}
		if err := n.Push(); err != nil {
			log.Printf("notification: toast failed: %v", err)
		}
	}()
}
