package types

import "fmt"

// Mode governs the authorization policy of a room. It is a closed
// enumeration, anything read from user input must pass ParseMode before it
// reaches the controller.
type Mode string

const (
	ModeOpen       Mode = "open"
	ModeClosed     Mode = "closed"
	ModePrivate    Mode = "private"
	ModeConference Mode = "conference"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOpen, ModeClosed, ModePrivate, ModeConference:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown room mode: %q", s)
}

func (m Mode) String() string {
	return string(m)
}
