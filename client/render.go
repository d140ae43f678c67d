package client

import (
	"chat-relay/domain"
	"strings"

	"github.com/gookit/color"
)

type Kind int

const (
	KindMessage Kind = iota
	KindWelcome
	KindJoined
	KindLeft
	KindShutdown
)

var (
	welcomePrefix = strings.TrimSuffix(domain.Welcome(""), "\n")
	joinedSuffix  = strings.TrimPrefix(strings.TrimSuffix(domain.Joined(""), "\n"), "Client ")
	leftSuffix    = strings.TrimPrefix(strings.TrimSuffix(domain.Left(""), "\n"), "Client ")
	shutdownLine  = strings.TrimSuffix(domain.ShutdownNotice, "\n")
)

// Classify tells relay announcements apart from relayed chat lines.
// line must not carry the delimiter.
func Classify(line string) Kind {
	switch {
	case line == shutdownLine:
		return KindShutdown
	case strings.HasPrefix(line, welcomePrefix):
		return KindWelcome
	case strings.HasPrefix(line, "Client ") && strings.HasSuffix(line, joinedSuffix):
		return KindJoined
	case strings.HasPrefix(line, "Client ") && strings.HasSuffix(line, leftSuffix):
		return KindLeft
	default:
		return KindMessage
	}
}

// Render colours announcements for a terminal. Chat lines are left as is.
func Render(line string, colours bool) string {
	if !colours {
		return line
	}
	switch Classify(line) {
	case KindWelcome:
		return color.New(color.FgGreen, color.OpBold).Render(line)
	case KindJoined:
		return color.New(color.FgCyan).Render(line)
	case KindLeft:
		return color.New(color.FgYellow).Render(line)
	case KindShutdown:
		return color.New(color.BgBlack, color.FgRed).Render(line)
	default:
		return line
	}
}
