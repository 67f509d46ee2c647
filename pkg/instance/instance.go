package instance

import (
	"fmt"
	"os"
)

// GetID returns the process identifier used as the owner of distributed job locks.
// BASKETCASE_INSTANCE_ID wins; otherwise hostname and pid are combined so two processes on
// the same host never share an owner token.
func GetID() string {
	if id := os.Getenv("BASKETCASE_INSTANCE_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "basketcase"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
