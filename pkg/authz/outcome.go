package authz

import (
	"github.com/trackora/workforce-idm/pkg/registry"
)

// Outcome is the terminal state of one authorization check.
type Outcome string

const (
	// OutcomeAdminBypass allows the session because the device carries the
	// admin override, irrespective of account.
	OutcomeAdminBypass Outcome = "admin_bypass"

	// OutcomeAllowed allows the session because the device matched an
	// existing active record. No mutation was performed.
	OutcomeAllowed Outcome = "allowed"

	// OutcomeAutoRegistered allows the session; the account had no bound
	// device and this one was registered as its first.
	OutcomeAutoRegistered Outcome = "auto_registered"

	// OutcomeReconciled allows the session; the account's single bound
	// device was silently migrated to this identifier.
	OutcomeReconciled Outcome = "reconciled"

	// OutcomeDenied blocks the session; the account has multiple bound
	// devices and this one is not among them. The session is terminated.
	OutcomeDenied Outcome = "denied"
)

// Allows reports whether the outcome permits entry into the authenticated
// area.
func (o Outcome) Allows() bool {
	return o != OutcomeDenied
}

// Decision is the sole artifact the engine produces per check.
type Decision struct {
	Outcome Outcome
	// Reason is set on denial only.
	Reason string
	// Record is the registry record the decision matched, created, or
	// updated. Nil on denial and on a conflict-collapsed registration.
	Record *registry.DeviceRecord
}

// DeniedReasonUnrecognizedDevice is the reason attached to multi-device
// mismatches.
const DeniedReasonUnrecognizedDevice = "unrecognized device"
