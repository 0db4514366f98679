package security

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// IdentityClaims are issued by the identity service. sub carries the user id,
// the name claims are attached to the connection at authentication time.
type IdentityClaims struct {
	jwt.StandardClaims
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Verifier checks identity tokens signed with HS256 or RS256.
type Verifier struct {
	method    jwt.SigningMethod
	key       any
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

func NewHMACVerifier(secret []byte, issuer, audience string, clockSkew time.Duration) *Verifier {
	return newVerifier(jwt.SigningMethodHS256, secret, issuer, audience, clockSkew)
}

func NewRSAVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *Verifier {
	return newVerifier(jwt.SigningMethodRS256, public, issuer, audience, clockSkew)
}

func newVerifier(m jwt.SigningMethod, key any, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		method:    m,
		key:       key,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
		// time claims are checked below with the configured skew
		parser: &jwt.Parser{
			ValidMethods:         []string{m.Alg()},
			SkipClaimsValidation: true,
		},
	}
}

// Verify parses the token and resolves the identity it was issued for.
func (v *Verifier) Verify(tokenStr string) (domain.Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return domain.Identity{}, ErrMissingToken
	}

	claims := &IdentityClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, ErrInvalidToken
		}
		return v.key, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return domain.Identity{}, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return domain.Identity{}, ErrInvalidAudience
	}

	now := v.now()
	if claims.ExpiresAt == 0 {
		return domain.Identity{}, ErrTokenExpired
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	if now.After(exp) || now.Before(nbf) {
		return domain.Identity{}, ErrTokenExpired
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return domain.Identity{}, ErrInvalidSubject
	}

	return domain.Identity{
		ID:        sub,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
