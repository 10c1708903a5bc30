package auth

import "errors"

// ErrInvalidCredentials is returned for any authentication failure. Unknown
// email, wrong password, and disabled accounts are indistinguishable to the
// caller so that account existence is not leaked.
var ErrInvalidCredentials = errors.New("invalid credentials")
