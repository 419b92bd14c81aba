package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - VERIFICACIÓN
// =================================================================================

// Subject crea un campo para el subject del token.
func Subject(v string) zap.Field {
	return zap.String("sub", v)
}

// Issuer crea un campo para el issuer esperado/recibido.
func Issuer(v string) zap.Field {
	return zap.String("iss", v)
}

// Audience crea un campo para la audiencia esperada.
func Audience(v string) zap.Field {
	return zap.String("aud", v)
}

// KID crea un campo para el key ID del token o de la clave.
func KID(v string) zap.Field {
	return zap.String("kid", v)
}

// Alg crea un campo para el algoritmo de firma.
func Alg(v string) zap.Field {
	return zap.String("alg", v)
}

// FailureCode crea un campo para el código de fallo de verificación.
func FailureCode(v string) zap.Field {
	return zap.String("failure_code", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - JWKS
// =================================================================================

// SnapshotID crea un campo para el ID del snapshot de claves.
func SnapshotID(v string) zap.Field {
	return zap.String("snapshot_id", v)
}

// SnapshotAge crea un campo para la edad del snapshot.
func SnapshotAge(v time.Duration) zap.Field {
	return zap.Duration("snapshot_age", v)
}

// JWKSURI crea un campo para la URI del JWKS.
func JWKSURI(v string) zap.Field {
	return zap.String("jwks_uri", v)
}

// KeyCount crea un campo para la cantidad de claves en un snapshot.
func KeyCount(v int) zap.Field {
	return zap.Int("key_count", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
