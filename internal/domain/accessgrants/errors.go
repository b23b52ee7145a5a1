package accessgrants

import "errors"

var (
	// ErrValidation: input faltante o mal formado (400).
	ErrValidation = errors.New("validation error")

	// ErrAccessDenied: autenticado pero no autorizado: ownership, email o relación (403).
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidOrExpiredToken agrupa token inexistente, vencido o ya usado (404).
	// No se distingue a propósito para no dar un oráculo de tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrAlreadyClaimed se detecta en la carrera del claim. Hacia afuera viaja
	// envuelto junto con ErrInvalidOrExpiredToken; solo el log lo distingue.
	ErrAlreadyClaimed = errors.New("grant already claimed")

	// ErrNotFound: grant id inexistente en endpoints del grantor (404).
	ErrNotFound = errors.New("grant not found")

	// ErrInvalidState: transición no permitida por la máquina de estados (409).
	ErrInvalidState = errors.New("invalid grant state")

	// ErrTokenGenerationExhausted: no se encontró token libre dentro del presupuesto (500, alerta).
	ErrTokenGenerationExhausted = errors.New("token generation exhausted")

	// ErrTokenConflict lo devuelve el store cuando el índice único de token rechaza el insert.
	ErrTokenConflict = errors.New("token already in use")
)
