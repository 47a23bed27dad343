package logger

import (
	"fmt"
	"strings"
)

// Icons used by the high-level helpers.
const (
	IconSuccess = "✅"
	IconRefresh = "🔄"
	IconFire    = "🔥"
	IconDrone   = "🛩"
)

// Success logs a success message with a checkmark.
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message.
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message.
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message.
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// LogSection prints a visual section separator.
func LogSection(title string) {
	line := strings.Repeat("=", 50)
	if l, ok := defaultLogger.(*logger); ok && !l.noColor {
		fmt.Println(colorCyan + line + colorReset)
		fmt.Println(colorCyan + colorBold + title + colorReset)
		fmt.Println(colorCyan + line + colorReset)
	} else {
		fmt.Println(line)
		fmt.Println(title)
		fmt.Println(line)
	}
}
