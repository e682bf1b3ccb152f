package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

// Init prepares the system clipboard. It runs once; later calls return the
// first result.
func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	return write(clipboard.FmtText, []byte(text))
}

// WriteImage puts PNG encoded image data on the clipboard.
func WriteImage(png []byte) error {
	return write(clipboard.FmtImage, png)
}

func write(format clipboard.Format, data []byte) error {
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(format, data)
	return nil
}
