package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// DefaultClockSkew is the leeway applied to exp and nbf
const DefaultClockSkew = 30 * time.Second

// Verifier checks HS256 bearer tokens whose subject is the caller's wallet address
type Verifier struct {
	secret []byte
	skew   time.Duration
	logger *zap.Logger
}

func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), skew: DefaultClockSkew, logger: logger}
}

// Verify validates the signature and time claims of tokenString and returns the lowercase
// wallet address in its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), v.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	)
	if err != nil {
		v.logger.Sugar().Debugw("Rejected bearer token", "error", err)
		return "", types.NewUnauthorizedError("invalid access token")
	}

	subject, ok := token.Subject()
	if !ok || !common.IsHexAddress(subject) {
		return "", types.NewUnauthorizedError("access token subject is not a wallet address")
	}
	return strings.ToLower(common.HexToAddress(subject).Hex()), nil
}

// Sign issues a token for address valid for ttl. It is used by tooling and tests; wallets get
// their tokens from the login service.
func (v *Verifier) Sign(address common.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Subject(strings.ToLower(address.Hex())).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), v.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type subjectKey struct{}

// WithSubject stores the authenticated wallet address in ctx
func WithSubject(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, subjectKey{}, address)
}

// SubjectFromContext returns the authenticated wallet address, if any
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}
