package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn in a goroutine. A panic inside fn is logged with its stack
// and swallowed so a single failing background task cannot take the server down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", currentStack()).
					Msg("Recovered from panic in goroutine")
			}
		}()
		fn()
	}()
}
