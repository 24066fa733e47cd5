package intercept

import (
	"errors"
	"fmt"

	"vurakit/agentveil/pkg/client"
)

// ErrPIIDetected matches every *PIIDetectedError with errors.Is.
var ErrPIIDetected = errors.New("PII detected, call refused")

// PIIDetectedError reports a call refused because a prompt contained PII.
type PIIDetectedError struct {
	// Phase is where the PII was found. Only PhasePrompt blocks.
	Phase Phase

	// Entities are the entities the blocking scan reported.
	Entities []client.Entity
}

// Error implements the error interface.
func (e *PIIDetectedError) Error() string {
	return fmt.Sprintf("PII detected in %s: %d entities found", e.Phase, len(e.Entities))
}

// Is reports whether target is ErrPIIDetected.
func (e *PIIDetectedError) Is(target error) bool {
	return target == ErrPIIDetected
}

// IsPIIDetected reports whether err is a policy refusal.
func IsPIIDetected(err error) bool {
	return errors.Is(err, ErrPIIDetected)
}
