// Package errs defines the error taxonomy the sync engine uses to decide,
// at the worker-pool boundary, whether a failed job should be retried.
// Retryability is a method on the error, never inferred from its message
// or dynamic type elsewhere in the codebase.
package errs

import "fmt"

// Retryable is implemented by every error kind in the taxonomy.
type Retryable interface {
	error
	IsRetryable() bool
}

// CryptoError wraps a vault encrypt/decrypt failure: malformed ciphertext
// or the wrong key. Non-retryable; the caller treats the value as missing.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string    { return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err) }
func (e *CryptoError) Unwrap() error    { return e.Err }
func (e *CryptoError) IsRetryable() bool { return false }

// TokenRevoked signals the FFN OAuth refresh endpoint reported the refresh
// token as revoked. The scheduler must mark the config inactive and stop
// issuing work for the tenant.
type TokenRevoked struct {
	TenantID string
	Detail   string
}

func (e *TokenRevoked) Error() string {
	return fmt.Sprintf("ffn token revoked for tenant %s: %s", e.TenantID, e.Detail)
}
func (e *TokenRevoked) IsRetryable() bool { return false }

// FFNApiError is raised for any non-2xx FFN response. 5xx and 429 are
// retryable; other 4xx (besides 401/403, which usually mean TokenRevoked
// upstream) are not.
type FFNApiError struct {
	Status int
	Body   string
}

func (e *FFNApiError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "...(truncated)"
	}
	return fmt.Sprintf("ffn api error: status=%d body=%s", e.Status, body)
}

func (e *FFNApiError) IsRetryable() bool {
	return e.Status == 429 || (e.Status >= 500 && e.Status < 600)
}

// CommerceApiError mirrors FFNApiError for the Commerce client boundary.
type CommerceApiError struct {
	Status int
	Body   string
}

func (e *CommerceApiError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "...(truncated)"
	}
	return fmt.Sprintf("commerce api error: status=%d body=%s", e.Status, body)
}

func (e *CommerceApiError) IsRetryable() bool {
	return e.Status == 429 || (e.Status >= 500 && e.Status < 600)
}

// BlockedByPaymentGate is raised when syncOrderToFFN's payment gate
// (spec.md §4.8) fails. Non-retryable: the job must not be retried on this
// reason alone, it waits for a payment webhook or the paid-order sweep.
type BlockedByPaymentGate struct {
	OrderID string
	Reason  string
}

func (e *BlockedByPaymentGate) Error() string {
	return fmt.Sprintf("order %s blocked by payment gate: %s", e.OrderID, e.Reason)
}
func (e *BlockedByPaymentGate) IsRetryable() bool { return false }

// NotFound covers a missing order, channel, or FFN configuration.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string        { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFound) IsRetryable() bool     { return false }

// NotUpdateable is returned when an in-flight FFN update is attempted
// after the outbound has passed SHIPPED|DELIVERED|CANCELLED.
type NotUpdateable struct {
	OrderID      string
	CurrentState string
}

func (e *NotUpdateable) Error() string {
	return fmt.Sprintf("order %s not updateable in state %s", e.OrderID, e.CurrentState)
}
func (e *NotUpdateable) IsRetryable() bool { return false }

// MissingWarehouse indicates the tenant's FFN configuration has no
// warehouse id, so an outbound cannot be created.
type MissingWarehouse struct {
	TenantID string
}

func (e *MissingWarehouse) Error() string {
	return fmt.Sprintf("tenant %s: missing warehouse id in FFN configuration", e.TenantID)
}
func (e *MissingWarehouse) IsRetryable() bool { return false }

// MissingCredentials indicates required per-tenant secrets could not be
// decrypted or were never configured.
type MissingCredentials struct {
	TenantID string
	Detail   string
}

func (e *MissingCredentials) Error() string {
	return fmt.Sprintf("tenant %s: missing credentials: %s", e.TenantID, e.Detail)
}
func (e *MissingCredentials) IsRetryable() bool { return false }

// ValidationError covers malformed webhook input. The webhook handler
// returns success-skipped to the platform so it stops retrying bad data.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s detail=%s", e.Field, e.Detail)
}
func (e *ValidationError) IsRetryable() bool { return false }

// TransientIO covers DB serialization failures and network timeouts that
// are worth retrying without any special handling.
type TransientIO struct {
	Op  string
	Err error
}

func (e *TransientIO) Error() string    { return fmt.Sprintf("transient io: %s: %v", e.Op, e.Err) }
func (e *TransientIO) Unwrap() error    { return e.Err }
func (e *TransientIO) IsRetryable() bool { return true }

// IsRetryable inspects err for the Retryable interface. Errors outside the
// taxonomy (plain errors.New, etc.) default to non-retryable: an unknown
// failure shape should surface rather than be retried blindly forever.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if as(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// as is a tiny errors.As shim kept local to avoid importing errors just for
// its one call site in IsRetryable.
func as(err error, target *Retryable) bool {
	for err != nil {
		if r, ok := err.(Retryable); ok {
			*target = r
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
