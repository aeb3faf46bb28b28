// Package shared contains the error taxonomy used across the module, free of
// any database or transport specifics.
//
// # Sentinel errors
//
//   - ErrUserError: the error carries a message meant for the end user
//   - ErrNotApplicable: the error does not come from a recognized source
//   - ErrUnrecognizedEnvelope: a recognized driver error has an unexpected message shape
//   - ErrInvalidConfig: configuration failed validation
//   - ErrCatalog: a translation catalog could not be loaded
//   - ErrTimeout: an operation timed out
//   - ErrDependencyFailure: a database or other dependency failed
//   - ErrInternal: unexpected state
//
// # Classification
//
// KindOf walks an error chain and returns the highest priority kind it finds:
//
//	Priority | Kind
//	---------|-------------------------
//	1        | KindCanceled
//	2        | KindTimeout
//	3        | KindUserError
//	4        | KindInvalidConfig
//	5        | KindCatalog
//	6        | KindUnrecognizedEnvelope
//	7        | KindNotApplicable
//	8        | KindDependencyFailure
//	9        | KindInternal
//
// Predicates (IsUserError, IsTimeout, ...) give shorter checks:
//
//	if shared.IsUserError(err) {
//	    // show err.Error() to the user
//	}
//
// # Marking and wrapping
//
// MarkKind attaches a kind to a third-party error without hiding it:
//
//	if err := pool.Ping(ctx); err != nil {
//	    return shared.MarkKind(err, shared.KindDependencyFailure)
//	}
//
// Wrap and Wrapf add context in the usual "context: err" form. Cause and
// UnwrapAll inspect chains built with fmt.Errorf %w and errors.Join.
//
// # Message style
//
// Keep internal error messages lowercase and without trailing punctuation so
// they compose when wrapped. Messages produced for end users come from the
// database payload and translation catalogs and are never rewritten here.
package shared
