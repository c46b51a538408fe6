package purchase

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingClaims = errors.New("transaction claims incomplete")

// transactionClaims is the signed payload of a store transaction.
// purchaseDate is in unix milliseconds.
type transactionClaims struct {
	jwt.RegisteredClaims
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	ProductID             string `json:"productId"`
	PurchaseDate          int64  `json:"purchaseDate"`
	Environment           string `json:"environment"`
}

func (c *transactionClaims) transaction() models.Transaction {
	return models.Transaction{
		ID:           c.TransactionID,
		OriginalID:   c.OriginalTransactionID,
		ProductID:    c.ProductID,
		PurchaseDate: time.UnixMilli(c.PurchaseDate).UTC(),
		Environment:  c.Environment,
	}
}

// JWSVerifier checks ES256 signed transaction payloads.
type JWSVerifier struct {
	key *ecdsa.PublicKey
}

func NewJWSVerifier(key *ecdsa.PublicKey) *JWSVerifier {
	return &JWSVerifier{key: key}
}

// Verify parses token. On failure the result still carries whatever
// transaction fields could be read, for logging.
func (v *JWSVerifier) Verify(token string) VerificationResult {
	claims := &transactionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		unverified := &transactionClaims{}
		if _, _, perr := jwt.NewParser().ParseUnverified(token, unverified); perr == nil {
			return VerificationResult{Transaction: unverified.transaction(), Err: err}
		}
		return VerificationResult{Err: err}
	}

	if claims.TransactionID == "" || claims.ProductID == "" {
		return VerificationResult{Transaction: claims.transaction(), Err: ErrMissingClaims}
	}
	return VerificationResult{Transaction: claims.transaction()}
}

// JWSSigner produces tokens accepted by a JWSVerifier holding the matching
// public key.
type JWSSigner struct {
	key *ecdsa.PrivateKey
}

func NewJWSSigner(key *ecdsa.PrivateKey) *JWSSigner {
	return &JWSSigner{key: key}
}

func (s *JWSSigner) Sign(tx models.Transaction) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, &transactionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(tx.PurchaseDate),
		},
		TransactionID:         tx.ID,
		OriginalTransactionID: tx.OriginalID,
		ProductID:             tx.ProductID,
		PurchaseDate:          tx.PurchaseDate.UnixMilli(),
		Environment:           tx.Environment,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction[%s]: %w", tx.ID, err)
	}
	return signed, nil
}

func (s *JWSSigner) Verifier() *JWSVerifier {
	return NewJWSVerifier(&s.key.PublicKey)
}
