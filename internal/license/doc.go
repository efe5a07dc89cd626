// Package license implements the offline, machine-bound license codec and the
// validation state machine.
//
// # Payload
//
// A license travels as four pipe-delimited fields:
//
//	fingerprintEnc|lastSeenDateEnc|deadlineEnc|enrollmentCodeEnc
//
// Every field is a ciphertext produced by codec.Codec. The same four fields are
// persisted per machine as indented JSON keyed by the machine fingerprint.
//
// # Enrollment code
//
// The enrollment code is a checksum-like character transform of the
// fingerprint (see DeriveEnrollmentCode). It makes editing the fingerprint
// field without regenerating the code detectable offline. It is not a MAC and
// gives no protection against anyone who knows the transform.
//
// # Status
//
// Engine.RefreshStatus recomputes the status from the persisted payload on
// every call:
//
//	no payload / foreign / corrupt  -> Unregistered
//	today < last seen (rollback)    -> Unregistered, file untouched
//	today >= deadline               -> Expired
//	enrollment code mismatch        -> Unregistered
//	deadline >= 2122/12/31          -> Permanent
//	otherwise                       -> Trial
//
// Decoding problems while reading are folded into Unregistered; only
// Engine.Activate reports typed errors.
//
// # Concurrency
//
// Engine is safe to call from several goroutines, but the persisted slot is
// shared with any other process on the machine and nothing coordinates
// re-stamping between processes.
package license
