package scanning

// DebounceGate suppresses repeated handling of an unchanged detected code.
// The caller arms the gate before resolution begins and resets it once the
// end-to-end cycle completes, so the same item can be re-scanned afterwards
// while identical detections mid-cycle are dropped.
type DebounceGate struct {
	lastHandledCode string
}

// ShouldHandle reports whether a code differs from the last armed one
func (g *DebounceGate) ShouldHandle(code string) bool {
	return code != "" && code != g.lastHandledCode
}

// Arm records the code being handled
func (g *DebounceGate) Arm(code string) {
	g.lastHandledCode = code
}

// Reset clears the gate after a completed cycle
func (g *DebounceGate) Reset() {
	g.lastHandledCode = ""
}

// Last returns the currently armed code, or "" when the gate is idle
func (g *DebounceGate) Last() string {
	return g.lastHandledCode
}
