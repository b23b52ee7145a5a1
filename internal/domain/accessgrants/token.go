package accessgrants

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// TokenAlphabet excluye 0, O, 1 e I (ambiguos al dictar/tipear).
// Son 32 símbolos: 256 % 32 == 0, así que byte % 32 no introduce sesgo.
const TokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	tokenGroupLen = 4
	tokenLen      = 2 * tokenGroupLen

	DefaultMaxTokenAttempts = 10
)

var tokenPattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

// TokenChecker es lo único que el generador necesita del store.
type TokenChecker interface {
	TokenExists(ctx context.Context, token string) (bool, error)
}

type TokenGenerator struct {
	rand        io.Reader
	maxAttempts int
}

func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{
		rand:        rand.Reader,
		maxAttempts: DefaultMaxTokenAttempts,
	}
}

// NewTokenGeneratorWithSource permite inyectar la fuente (tests).
func NewTokenGeneratorWithSource(src io.Reader, maxAttempts int) *TokenGenerator {
	if src == nil {
		src = rand.Reader
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxTokenAttempts
	}
	return &TokenGenerator{rand: src, maxAttempts: maxAttempts}
}

// Generate devuelve un token XXXX-YYYY sin consultar estado.
func (g *TokenGenerator) Generate() (string, error) {
	var buf [tokenLen]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	var sb strings.Builder
	sb.Grow(tokenLen + 1)
	for i, b := range buf {
		if i == tokenGroupLen {
			sb.WriteByte('-')
		}
		sb.WriteByte(TokenAlphabet[int(b)%len(TokenAlphabet)])
	}
	return sb.String(), nil
}

// GenerateUnique reintenta ante colisión contra tokens vivos.
// El pre-chequeo es una optimización: la garantía real es el índice único del store.
func (g *TokenGenerator) GenerateUnique(ctx context.Context, store TokenChecker) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := g.Generate()
		if err != nil {
			return "", err
		}
		exists, err := store.TokenExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check token: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrTokenGenerationExhausted, g.maxAttempts)
}

// NormalizeToken aplica trim + mayúsculas y tolera el guion omitido.
// Devuelve false si el resultado no tiene el formato XXXX-YYYY.
func NormalizeToken(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	if len(s) == tokenLen && !strings.Contains(s, "-") {
		s = s[:tokenGroupLen] + "-" + s[tokenGroupLen:]
	}
	if !tokenPattern.MatchString(s) {
		return "", false
	}
	return s, true
}
