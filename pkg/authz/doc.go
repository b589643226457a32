// Package authz implements the device-binding authorization engine for the
// workforce attendance service.
//
// On every interactive login and every cold-start/resume the engine decides
// whether the physical device may act as the authenticated account, under a
// policy that tolerates app reinstalls, supports a privileged admin-device
// override, and stays safe under concurrent triggers and partial failures.
//
// # Policy
//
// Checks evaluate in a fixed order:
//
//  1. Admin lookup: an active admin-flagged record for the device identifier
//     grants OutcomeAdminBypass for any account. The account-device query
//     never runs after a bypass, so an admin device is never registered
//     against an account.
//  2. Account-device classification by count of the account's active
//     records:
//     - zero: register this device as the account's first, outcome
//       OutcomeAutoRegistered.
//     - one: an identifier match is OutcomeAllowed; a mismatch migrates the
//       stored identifier in place (a reinstall, not an intrusion), outcome
//       OutcomeReconciled.
//     - two or more: only an exact match is OutcomeAllowed; anything else
//       terminates the session and returns OutcomeDenied. No
//       auto-registration once an account has multiple devices.
//
// # Usage
//
//	engine := authz.NewEngine(deviceRegistry, authProvider)
//
//	decision, err := engine.Check(ctx, principal, identity, authz.CheckOptions{})
//	if err != nil {
//		// Transient failure: block navigation, allow retry. Never grant
//		// access on an incomplete check.
//	}
//	if !decision.Outcome.Allows() {
//		// Session already terminated; show the denial.
//	}
//
// # Failure semantics
//
// Registry I/O failures and timeouts surface as CHECK_FAILED errors, which
// are retryable and non-punitive. Only an explicit policy mismatch produces
// OutcomeDenied. Concurrent checks for the same (account, identifier) pair
// are serialized in-process, and a uniqueness conflict from the registry's
// own constraint collapses into plain success.
package authz
