package tty

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ricochet1k/termemu"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

type InputKind int

const (
	InputKey InputKind = iota
	// InputRaw is forwarded to the remote PTY byte for byte.
	InputRaw
	InputFocus
	InputBlur
	InputDetach
)

type Input struct {
	Kind InputKind
	Key  terminal.KeyInput
	Raw  []byte
}

const (
	keyEsc    = 0x1b
	keyDetach = 0x1d // Ctrl+]
	keyDel    = 0x7f
)

// Decoder splits raw terminal input into key events. Incomplete UTF-8 and
// CSI sequences at the end of a read are held until the next one.
type Decoder struct {
	pending []byte
}

func (d *Decoder) Decode(p []byte) []Input {
	buf := append(d.pending, p...)
	d.pending = nil
	var out []Input
	for len(buf) > 0 {
		in, n := decodeOne(buf)
		if n == 0 {
			d.pending = append([]byte(nil), buf...)
			break
		}
		out = append(out, in)
		buf = buf[n:]
	}
	return out
}

func key(code termemu.KeyCode, r rune, mod termemu.KeyMod) Input {
	return Input{Kind: InputKey, Key: terminal.Press(code, r, mod)}
}

func raw(p []byte) Input {
	return Input{Kind: InputRaw, Raw: append([]byte(nil), p...)}
}

// decodeOne decodes the event at the start of buf and returns it with the
// number of bytes used. n is 0 when buf holds only part of an event.
func decodeOne(buf []byte) (in Input, n int) {
	b := buf[0]
	switch {
	case b == 0x00:
		return key(termemu.KeyRune, '`', termemu.ModCtrl), 1
	case b == '\r':
		return key(termemu.KeyEnter, 0, 0), 1
	case b == '\t':
		return key(termemu.KeyTab, 0, 0), 1
	case b == keyDel:
		return key(termemu.KeyBackspace, 0, 0), 1
	case b == keyDetach:
		return Input{Kind: InputDetach}, 1
	case b == keyEsc:
		return decodeEscape(buf)
	case b >= 0x01 && b <= 0x1a:
		return key(termemu.KeyRune, rune('a'+b-1), termemu.ModCtrl), 1
	case b < 0x20:
		return raw(buf[:1]), 1
	}

	if !utf8.FullRune(buf) {
		return Input{}, 0
	}
	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError && size == 1 {
		return raw(buf[:1]), 1
	}
	return key(termemu.KeyRune, r, 0), size
}

func decodeEscape(buf []byte) (Input, int) {
	if len(buf) == 1 {
		return key(termemu.KeyEscape, 0, 0), 1
	}
	switch buf[1] {
	case '[':
		return decodeCSI(buf)
	case 'O':
		if len(buf) < 3 {
			return Input{}, 0
		}
		if code, ok := cursorKeys[buf[2]]; ok {
			return key(code, 0, 0), 3
		}
		return raw(buf[:3]), 3
	case keyEsc:
		return key(termemu.KeyEscape, 0, 0), 1
	}
	if buf[1] >= 0x20 && buf[1] < keyDel {
		return key(termemu.KeyRune, rune(buf[1]), termemu.ModAlt), 2
	}
	return key(termemu.KeyEscape, 0, 0), 1
}

var cursorKeys = map[byte]termemu.KeyCode{
	'A': termemu.KeyUp,
	'B': termemu.KeyDown,
	'C': termemu.KeyRight,
	'D': termemu.KeyLeft,
	'H': termemu.KeyHome,
	'F': termemu.KeyEnd,
}

var tildeKeys = map[string]termemu.KeyCode{
	"1": termemu.KeyHome,
	"2": termemu.KeyInsert,
	"3": termemu.KeyDelete,
	"4": termemu.KeyEnd,
	"5": termemu.KeyPageUp,
	"6": termemu.KeyPageDown,
	"7": termemu.KeyHome,
	"8": termemu.KeyEnd,
}

// decodeCSI handles ESC [ params final. Sequences it does not know are
// passed through whole.
func decodeCSI(buf []byte) (Input, int) {
	i := 2
	for i < len(buf) && buf[i] >= 0x20 && buf[i] <= 0x3f {
		i++
	}
	if i == len(buf) {
		return Input{}, 0
	}
	final := buf[i]
	n := i + 1
	if final < 0x40 || final > 0x7e {
		// Not a CSI after all; hand over what we have.
		return raw(buf[:i]), i
	}
	params := string(buf[2:i])

	switch {
	case final == 'I' && params == "":
		return Input{Kind: InputFocus}, n
	case final == 'O' && params == "":
		return Input{Kind: InputBlur}, n
	case final == 'Z' && params == "":
		return key(termemu.KeyTab, 0, termemu.ModShift), n
	case final == '~':
		num, mod := splitParams(params)
		if code, ok := tildeKeys[num]; ok {
			return key(code, 0, mod), n
		}
	default:
		if code, ok := cursorKeys[final]; ok {
			num, mod := splitParams(params)
			if num == "" || num == "1" {
				return key(code, 0, mod), n
			}
		}
	}
	return raw(buf[:n]), n
}

// splitParams splits "n;m" into the key number and xterm modifier mask.
func splitParams(params string) (string, termemu.KeyMod) {
	num, modStr, found := strings.Cut(params, ";")
	if !found {
		return num, 0
	}
	m, err := strconv.Atoi(modStr)
	if err != nil || m < 1 {
		return num, 0
	}
	m--
	var mod termemu.KeyMod
	if m&1 != 0 {
		mod |= termemu.ModShift
	}
	if m&2 != 0 {
		mod |= termemu.ModAlt
	}
	if m&4 != 0 {
		mod |= termemu.ModCtrl
	}
	if m&8 != 0 {
		mod |= termemu.ModMeta
	}
	return num, mod
}
