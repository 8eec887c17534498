package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorError   = 203 // red
	colorSuccess = 114 // green
	colorWarn    = 179 // yellow
)

var noColor bool

func render(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderError returns s in the error (red) color, used for the banner and
// field messages.
func RenderError(s string) string { return render(colorError, s) }

// RenderSuccess returns s in the success (green) color.
func RenderSuccess(s string) string { return render(colorSuccess, s) }

// RenderWarn returns s in the warning (yellow) color.
func RenderWarn(s string) string { return render(colorWarn, s) }

// statusColors groups the statuses of every screen by how much attention
// they need.
var statusColors = map[string]int{
	"pending":     colorWarn,
	"new":         colorWarn,
	"open":        colorWarn,
	"in_progress": colorAccent,
	"reviewed":    colorAccent,
	"read":        colorAccent,
	"draft":       colorAccent,
	"resolved":    colorSuccess,
	"replied":     colorSuccess,
	"published":   colorSuccess,
	"closed":      colorMuted,
	"archived":    colorMuted,
}

// RenderStatus colors a record status. Unknown statuses are left plain.
func RenderStatus(status string) string {
	code, ok := statusColors[status]
	if !ok {
		return status
	}
	return render(code, status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
