package market

import "errors"

// Taxonomia de erros do ledger. Condições esperadas sobem como sentinela
// específica e nunca são re-tentadas automaticamente; ErrInvariantViolation
// indica bug (aborta a operação sem persistir nada e deve gerar alerta).
var (
	ErrMarketNotFound = errors.New("market not found")

	// Estado inválido
	ErrMarketResolved = errors.New("market already resolved")
	ErrMarketExpired  = errors.New("market has ended; bets closed")
	ErrNotYetEligible = errors.New("market not yet eligible for resolution")

	// Entrada inválida
	ErrStakeTooSmall = errors.New("stake below minimum")
	ErrInvalidSide   = errors.New("side must be yes or no")

	// Fatal
	ErrInvariantViolation = errors.New("ledger invariant violation")
)
