package session

import (
	"fmt"
	"math/rand"
	"strings"
)

// Challenge is the head movement the user is asked to perform between the
// two stills. It is attached to the second still as a tag. The empty
// challenge asks for any movement.
type Challenge string

const (
	ChallengeNone  Challenge = ""
	ChallengeUp    Challenge = "up"
	ChallengeDown  Challenge = "down"
	ChallengeLeft  Challenge = "left"
	ChallengeRight Challenge = "right"
)

var challenges = []Challenge{ChallengeUp, ChallengeDown, ChallengeLeft, ChallengeRight}

// ParseChallenge accepts the challenge names case-insensitively. The empty
// string parses to ChallengeNone.
func ParseChallenge(s string) (Challenge, error) {
	c := Challenge(strings.ToLower(strings.TrimSpace(s)))
	if c == ChallengeNone {
		return c, nil
	}
	for _, known := range challenges {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown challenge %q", s)
}

// RandomChallenge picks one of the four directions.
func RandomChallenge() Challenge {
	return challenges[rand.Intn(len(challenges))]
}

// Instruction is the text shown while waiting for the movement.
func (c Challenge) Instruction() string {
	switch c {
	case ChallengeUp:
		return "Slowly tilt your head up"
	case ChallengeDown:
		return "Slowly tilt your head down"
	case ChallengeLeft:
		return "Slowly turn your head to the left"
	case ChallengeRight:
		return "Slowly turn your head to the right"
	default:
		return "Slowly nod your head"
	}
}

// Tags returns the still tags for c.
func (c Challenge) Tags() []string {
	if c == ChallengeNone {
		return nil
	}
	return []string{string(c)}
}
