// Package dlq implements the dead-letter store: dispatches that
// exhausted their retries are captured here with their payload and
// failure context, retained for a configurable TTL, and can be
// re-dispatched or deleted through the admin surface.
package dlq
