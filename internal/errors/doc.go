// Package errors provides error handling conventions for keepsake.
//
// This package defines sentinel errors for the failure classes the backup
// engine distinguishes, helpers that attach them to wrapped causes, and an
// ExitError type for CLI exit code handling.
//
// # Sentinel Errors
//
// Sentinels mark the class of a failure and are attached with [Mark] so they
// survive wrapping. Callers check them with [Is]:
//
//	if errors.Is(err, kerrors.ErrNotFound) {
//	    // the remote object or local source does not exist
//	}
//
// The classes are:
//
//   - ErrConfiguration: missing/invalid backend options, unknown storage type
//   - ErrNotFound: missing local source or remote object
//   - ErrTransfer: network or remote-auth failure during a remote operation
//   - ErrAuthentication: wrong decryption password or corrupt ciphertext
//   - ErrUnsupported: optional capability requested on a backend lacking it
//   - ErrStateCorrupt: unreadable persisted state (recovered, never fatal)
//
// # Exit Codes
//
// [ExitCode] maps an error chain to a Unix exit status: 0 for nil, 1 for
// user errors (configuration, unsupported operations), 2 for system errors.
// Exit-code mapping happens once, at the CLI boundary.
package errors
