package proactive

import "time"

// Knuth's multiplicative hash constant. Frozen: changing it changes
// which idle durations every existing conversation computes.
const hashMultiplier = 2654435761

// RequiredIdle derives the idle duration a session must stay silent
// before a proactive message may fire. The result is a pure function
// of the last user message id and the configured bounds, so repeated
// scheduler ticks over the same idle session always agree, while
// different conversations land on different points of the
// [minHours, maxHours] range instead of a fixed, guessable cadence.
func RequiredIdle(messageID int64, minHours, maxHours float64) time.Duration {
	if minHours == maxHours {
		return hoursToDuration(minHours)
	}
	hashed := (uint64(messageID) * hashMultiplier) % 1000
	ratio := float64(hashed) / 999.0
	return hoursToDuration(minHours + (maxHours-minHours)*ratio)
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * 3600 * float64(time.Second))
}
