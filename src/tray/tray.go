// Package tray shows the notification-area icon of the resident process.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

const Title = "Region Select"

// Menu holds the callbacks of the tray menu. They run on the systray goroutine
// and should only post work elsewhere.
type Menu struct {
	Tooltip  string
	OnSelect func()
	OnQuit   func()
}

var (
	mu      sync.Mutex
	ready   bool
	quit    bool
	pending string
	about   *systray.MenuItem
)

// Run shows the icon and blocks until Quit. It must be called from the main
// goroutine on platforms whose tray needs it.
func Run(menu Menu, onExit func()) {
	systray.Run(func() { onReady(menu) }, func() {
		mu.Lock()
		ready = false
		mu.Unlock()
		if onExit != nil {
			onExit()
		}
	})
}

func onReady(menu Menu) {
	systray.SetIcon(Icon())
	systray.SetTitle(Title)
	tooltip := menu.Tooltip
	if tooltip == "" {
		tooltip = Title
	}
	systray.SetTooltip(tooltip)

	mSelect := systray.AddMenuItem("Select region", "Select a screen region")
	aboutItem := systray.AddMenuItem(Title, "")
	aboutItem.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	mu.Lock()
	ready = true
	about = aboutItem
	if pending != "" {
		aboutItem.SetTitle(pending)
	}
	quitEarly := quit
	mu.Unlock()
	if quitEarly {
		systray.Quit()
		return
	}

	go func() {
		for {
			select {
			case <-mSelect.ClickedCh:
				log.Printf("tray: select requested")
				if menu.OnSelect != nil {
					menu.OnSelect()
				}
			case <-mQuit.ClickedCh:
				log.Printf("tray: quit requested")
				if menu.OnQuit != nil {
					menu.OnQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// UpdateTooltip changes the tooltip. It is a no-op until the tray is ready.
func UpdateTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	if ready {
		systray.SetTooltip(text)
	}
}

// SetAboutExtra shows text in the disabled informational menu entry.
func SetAboutExtra(text string) {
	mu.Lock()
	defer mu.Unlock()
	pending = text
	if about != nil && ready {
		about.SetTitle(text)
	}
}

// Quit removes the icon and ends Run, or makes Run end as soon as it is ready.
func Quit() {
	mu.Lock()
	r := ready
	quit = true
	mu.Unlock()
	if r {
		systray.Quit()
	}
}
