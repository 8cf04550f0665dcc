package messagequeue

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/solrelay/internal/domain/event"
)

// Validate checks that data is a well-formed serialized TokenEvent before it
// leaves the process.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var ev event.TokenEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
