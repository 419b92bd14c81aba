package oidc

import (
	"errors"
	"fmt"
)

// ErrUnknownKey indica que el kid no está en ningún snapshot conocido,
// incluso después de un refresh. El verificador lo traduce a unknown_key.
var ErrUnknownKey = errors.New("oidc: kid not found in key set")

// FetchError envuelve un fallo de red/parseo contra el provider.
// Solo llega al caller cuando no hay snapshot utilizable (cold start).
type FetchError struct {
	// Op identifica la fase: "discovery", "jwks" o "parse".
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("oidc: fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reporta si err (o su cadena) es un *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
