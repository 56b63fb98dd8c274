package screeninterfaces

// Screen is where status lines are shown, either the interactive terminal
// screen or plain output.
type Screen interface {
	EmitMsg(string)
	Fini()
}

// Emit shows s on scr.
func Emit(scr Screen, s string) {
	scr.EmitMsg(s)
}

// Close ends scr.
func Close(scr Screen) {
	scr.Fini()
}
