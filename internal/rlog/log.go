// Package rlog is reliudp's logging façade. It keeps the colored,
// leveled texture of a hand-rolled console logger but backs it with
// logrus so structured fields (connection id, remote address) travel
// with every connection-scoped line instead of being interpolated into
// a format string.
package rlog

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package default logger. Embedding applications may swap
// its output or level; the conn and transport packages always log
// through this instance (or a derived *logrus.Entry) rather than the
// standard library log package.
var Log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
		TimestampFormat: "15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stdout)
	return l
}

// SetLevel adjusts the minimum emitted level, e.g. logrus.DebugLevel
// during development or test debugging.
func SetLevel(level logrus.Level) {
	Log.SetLevel(level)
}

// SetOutput redirects where log lines are written, mainly for tests
// that want to assert on captured output.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithConn returns a logger scoped to one connection, tagging every
// subsequent line with its correlation id and remote address.
func WithConn(connID, remoteAddr string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"conn_id": connID,
		"remote":  remoteAddr,
	})
}

// Section prints a banner-style section header, matching the visual
// weight a CLI startup sequence wants without routing through the
// structured logger (this is operator-facing console chrome, not a
// log line to be scraped).
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n\033[36m╔%s╗\033[0m\n", border)
	fmt.Printf("\033[36m║\033[0m %-61s \033[36m║\033[0m\n", title)
	fmt.Printf("\033[36m╚%s╝\033[0m\n\n", border)
}

// Banner prints the application banner shown at startup by the example
// binaries.
func Banner(title, version string) {
	const banner = `
╔═══════════════════════════════════════════════════════════╗
║                                                             ║
║   ██████╗ ███████╗██╗     ██╗██╗   ██╗██████╗ ██████╗       ║
║   ██╔══██╗██╔════╝██║     ██║██║   ██║██╔══██╗██╔══██╗      ║
║   ██████╔╝█████╗  ██║     ██║██║   ██║██║  ██║██████╔╝      ║
║   ██╔══██╗██╔══╝  ██║     ██║██║   ██║██║  ██║██╔═══╝       ║
║   ██║  ██║███████╗███████╗██║╚██████╔╝██████╔╝██║           ║
║   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝ ╚═════╝ ╚═════╝ ╚═╝           ║
║                                                             ║
║              %-45s║
║                    Version %-33s║
║                                                             ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, title, version)
}
