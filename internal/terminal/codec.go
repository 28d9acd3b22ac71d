package terminal

// Capture reads the current state of emu into a Snapshot.
func Capture(emu Emulator) Snapshot {
	cols, rows := emu.Size()
	return Snapshot{
		Buffer:  emu.Serialize(),
		Rows:    rows,
		Cols:    cols,
		ScrollY: emu.ScrollY(),
	}
}

// Restore replays snap into emu. The size is applied before the buffer is
// written so that line wrapping matches the captured session; the caller is
// expected to fit to its container afterwards. Emulators that parse
// asynchronously have applied the buffer by the time Restore returns.
func Restore(emu Emulator, snap Snapshot) error {
	if snap.Cols > 0 && snap.Rows > 0 {
		if err := emu.Resize(snap.Cols, snap.Rows); err != nil {
			return err
		}
	}
	emu.Reset()
	if snap.Buffer != "" {
		emu.Feed([]byte(snap.Buffer))
	}
	if s, ok := emu.(Syncer); ok {
		s.Sync()
	}
	if snap.ScrollY > 0 {
		emu.ScrollTo(snap.ScrollY)
	}
	return nil
}

// HasBuffer reports whether the snapshot carries restorable content.
func (s *Snapshot) HasBuffer() bool {
	return s != nil && s.Buffer != ""
}
