package terminal

import (
	"errors"

	"github.com/ricochet1k/termemu"
)

var errUnknownControl = errors.New("unknown control signal")

func (k KeyInput) event() termemu.KeyEvent {
	ev := termemu.KeyEvent{
		Code:       k.Code,
		Rune:       k.Rune,
		Mod:        k.Mod,
		Event:      k.Event,
		Shifted:    k.Shifted,
		BaseLayout: k.BaseLayout,
		Text:       k.Text,
	}
	return ev
}

// Press builds a key press event.
func Press(code termemu.KeyCode, r rune, mod termemu.KeyMod) KeyInput {
	return KeyInput{Code: code, Rune: r, Mod: mod, Event: termemu.KeyPress}
}

// HasOnly reports whether exactly the modifiers in mods are held. Lock
// modifiers are ignored.
func (k KeyInput) HasOnly(mods termemu.KeyMod) bool {
	held := k.Mod &^ (termemu.ModCapsLock | termemu.ModNumLock)
	return held == mods
}

func (k KeyInput) IsPress() bool {
	return k.Event == termemu.KeyPress || k.Event == termemu.KeyRepeat
}

// IsRune reports whether k is the printable key r, ignoring case.
func (k KeyInput) IsRune(r rune) bool {
	if k.Code != termemu.KeyRune {
		return false
	}
	return lower(k.Rune) == lower(r) || lower(k.BaseLayout) == lower(r)
}

func lower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// ControlBytes returns the byte a line discipline maps to sig.
func ControlBytes(sig ControlSignal) ([]byte, error) {
	switch sig {
	case ControlInterrupt:
		return []byte{0x03}, nil
	case ControlEOF:
		return []byte{0x04}, nil
	case ControlSuspend:
		return []byte{0x1a}, nil
	default:
		return nil, errUnknownControl
	}
}
