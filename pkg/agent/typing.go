package agent

import (
	"context"
	"time"
	"unicode/utf8"
)

// TypingDelay maps reply length to a human-looking typing pause.
func TypingDelay(text string) time.Duration {
	n := utf8.RuneCountInString(text)
	switch {
	case n < 50:
		return 2 * time.Second
	case n < 100:
		return 3 * time.Second
	case n < 200:
		return 5 * time.Second
	case n < 400:
		return 7 * time.Second
	default:
		return 9 * time.Second
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
