package controller

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ricochet1k/termemu"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

// Layout selects the platform copy chord.
type Layout int

const (
	LayoutAuto Layout = iota
	// LayoutMac copies with Cmd+C.
	LayoutMac
	// LayoutLinux copies with Ctrl+Shift+C.
	LayoutLinux
)

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LayoutAuto, nil
	case "mac", "darwin", "macos":
		return LayoutMac, nil
	case "linux", "pc", "windows":
		return LayoutLinux, nil
	default:
		return LayoutAuto, fmt.Errorf("unknown key layout %q", s)
	}
}

func DetectLayout() Layout {
	if runtime.GOOS == "darwin" {
		return LayoutMac
	}
	return LayoutLinux
}

func (l Layout) resolve() Layout {
	if l == LayoutAuto {
		return DetectLayout()
	}
	return l
}

func (l Layout) String() string {
	switch l {
	case LayoutMac:
		return "mac"
	case LayoutLinux:
		return "linux"
	default:
		return "auto"
	}
}

type keyAction int

const (
	keyForward keyAction = iota
	keySwallow
	keyCopy
)

func classifyKey(key terminal.KeyInput, layout Layout) keyAction {
	if key.IsRune('`') && key.HasOnly(termemu.ModCtrl) {
		return keySwallow
	}
	if !key.IsPress() || !key.IsRune('c') {
		return keyForward
	}
	switch layout.resolve() {
	case LayoutMac:
		if key.HasOnly(termemu.ModSuper) || key.HasOnly(termemu.ModMeta) {
			return keyCopy
		}
	case LayoutLinux:
		if key.HasOnly(termemu.ModCtrl | termemu.ModShift) {
			return keyCopy
		}
	}
	return keyForward
}

func isSubmitKey(key terminal.KeyInput) bool {
	return key.Code == termemu.KeyEnter && key.IsPress() && key.HasOnly(0)
}
