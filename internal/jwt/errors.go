package jwt

import (
	"errors"
	"fmt"
)

// Code clasifica un fallo de verificación. El HTTP layer mapea cualquier
// código a un rechazo genérico; el código puntual va solo a logs/métricas
// para no regalar un oráculo sobre el verificador.
type Code string

const (
	CodeMalformed         Code = "malformed_token"
	CodeUnsupportedAlg    Code = "unsupported_algorithm"
	CodeUnknownKey        Code = "unknown_key"
	CodeBadSignature      Code = "bad_signature"
	CodeClaimRejected     Code = "claim_rejected"
	CodeMissingCredential Code = "missing_credential"
	CodeFetchFailed       Code = "jwks_fetch_failed"
)

// VerifyError es un fallo de verificación como valor: nunca se panickea por
// un token inválido.
type VerifyError struct {
	Code  Code
	Claim string // qué claim falló, solo para CodeClaimRejected
	cause error
}

func (e *VerifyError) Error() string {
	switch {
	case e.Claim != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Claim)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	default:
		return string(e.Code)
	}
}

func (e *VerifyError) Unwrap() error { return e.cause }

// Is permite errors.Is contra los errores predefinidos: dos VerifyError son
// "iguales" si comparten código (el claim/cause es detalle).
func (e *VerifyError) Is(target error) bool {
	t, ok := target.(*VerifyError)
	return ok && t.Code == e.Code
}

// Errores predefinidos para matchear con errors.Is.
var (
	ErrMalformed         = &VerifyError{Code: CodeMalformed}
	ErrUnsupportedAlg    = &VerifyError{Code: CodeUnsupportedAlg}
	ErrUnknownKey        = &VerifyError{Code: CodeUnknownKey}
	ErrBadSignature      = &VerifyError{Code: CodeBadSignature}
	ErrClaimRejected     = &VerifyError{Code: CodeClaimRejected}
	ErrMissingCredential = &VerifyError{Code: CodeMissingCredential}
	ErrFetchFailed       = &VerifyError{Code: CodeFetchFailed}
)

func malformed(cause error) *VerifyError {
	return &VerifyError{Code: CodeMalformed, cause: cause}
}

func unsupportedAlg(cause error) *VerifyError {
	return &VerifyError{Code: CodeUnsupportedAlg, cause: cause}
}

func badSignature(cause error) *VerifyError {
	return &VerifyError{Code: CodeBadSignature, cause: cause}
}

func claimRejected(claim string) *VerifyError {
	return &VerifyError{Code: CodeClaimRejected, Claim: claim}
}

func fetchFailed(cause error) *VerifyError {
	return &VerifyError{Code: CodeFetchFailed, cause: cause}
}

// CodeOf extrae el código de clasificación; "" si err no es un VerifyError.
func CodeOf(err error) Code {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
