package injector

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Key is a key the injector knows how to press.
type Key int

const (
	KeyPaste Key = iota
	KeyEnter
	KeyBackspace
)

// Keyboard sends synthetic key presses.
type Keyboard interface {
	Press(key Key) error
}

// SystemKeyboard presses keys through keybd_event. Paste uses Cmd+V on macOS
// and Ctrl+V elsewhere.
type SystemKeyboard struct {
	once    sync.Once
	bonding keybd_event.KeyBonding
	err     error
	mu      sync.Mutex
}

func NewSystemKeyboard() *SystemKeyboard {
	return &SystemKeyboard{}
}

func (k *SystemKeyboard) Press(key Key) error {
	k.once.Do(func() {
		k.bonding, k.err = keybd_event.NewKeyBonding()
		if k.err == nil && runtime.GOOS == "linux" {
			// The uinput device needs a moment before it accepts events.
			time.Sleep(2 * time.Second)
		}
	})
	if k.err != nil {
		return fmt.Errorf("keyboard unavailable: %w", k.err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.bonding.Clear()
	k.bonding.HasCTRL(false)
	k.bonding.HasSuper(false)
	switch key {
	case KeyPaste:
		if runtime.GOOS == "darwin" {
			k.bonding.HasSuper(true)
		} else {
			k.bonding.HasCTRL(true)
		}
		k.bonding.SetKeys(keybd_event.VK_V)
	case KeyEnter:
		k.bonding.SetKeys(keybd_event.VK_ENTER)
	case KeyBackspace:
		k.bonding.SetKeys(keybd_event.VK_BACKSPACE)
	default:
		return fmt.Errorf("unsupported key %d", key)
	}

	if err := k.bonding.Launching(); err != nil {
		return fmt.Errorf("failed to press key: %w", err)
	}
	return nil
}
