package middleware

import "sync"

// CircuitBreaker counts consecutive store errors. It opens after
// failureThreshold failures and closes again after successThreshold
// consecutive successful probes.
type CircuitBreaker struct {
	mu               sync.Mutex
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

func newCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: 5,
		successThreshold: 3,
	}
}

func (c *CircuitBreaker) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// RecordFailure reports whether the circuit is open after the failure.
func (c *CircuitBreaker) RecordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if !c.open && c.failureCount >= c.failureThreshold {
		c.open = true
	}
	return c.open
}

// RecordSuccess reports whether the circuit just closed.
func (c *CircuitBreaker) RecordSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		c.failureCount = 0
		return false
	}
	c.successCount++
	if c.successCount < c.successThreshold {
		return false
	}
	c.open = false
	c.failureCount = 0
	c.successCount = 0
	return true
}
