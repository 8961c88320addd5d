package safego

import (
	"log"
	"runtime/debug"
)

// Go runs fn on a new goroutine. The terminal UI owns stdout/stderr, so a
// panic is written to logger with its stack before being re-raised.
func Go(logger *log.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
