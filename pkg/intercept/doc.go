// Package intercept sequences PII scans around a model call.
//
// A Sequencer scans each outbound prompt, issues the wrapped call, then
// scans each generation the call produced:
//
//	BEFORE_CALL -> CALLING -> AFTER_CALL -> DONE
//	     |            |
//	  BLOCKED       FAILED
//
// Entities from positive scans are appended to a Collector in scan order.
// When BlockOnPII is set and a prompt scan finds PII, the call is never
// issued and Run returns a *PIIDetectedError. Scans are advisory: a scan
// that fails is skipped and never changes the path through the states.
// Generations are returned exactly as the call produced them.
//
// Blocking is decided per call. Findings collected by earlier calls do not
// block later ones.
package intercept
