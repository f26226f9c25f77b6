package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrMissingProof is returned when the call carries no proof for the
	// principal that must authorize it.
	ErrMissingProof = errors.New("crypto: missing authorization proof")
	// ErrPrincipalNotAllowed is returned by Allowlist for unknown principals.
	ErrPrincipalNotAllowed = errors.New("crypto: principal not allowed")
)

// Authenticator answers whether the current call was authorized by the
// supplied principal. The core only relies on the error/nil outcome.
type Authenticator interface {
	RequireAuth(ctx context.Context, principal Address) error
}

// AllowAll authorizes every principal. It mirrors a host that has already
// verified all signatures before dispatching the call.
type AllowAll struct{}

// RequireAuth implements Authenticator.
func (AllowAll) RequireAuth(context.Context, Address) error { return nil }

// Allowlist authorizes only the principals it was built with.
type Allowlist struct {
	allowed map[Address]struct{}
}

// NewAllowlist constructs an allowlist containing the provided principals.
func NewAllowlist(principals ...Address) *Allowlist {
	list := &Allowlist{allowed: make(map[Address]struct{}, len(principals))}
	for _, p := range principals {
		list.allowed[p] = struct{}{}
	}
	return list
}

// Allow adds the principal to the list.
func (l *Allowlist) Allow(principal Address) {
	l.allowed[principal] = struct{}{}
}

// Revoke removes the principal from the list.
func (l *Allowlist) Revoke(principal Address) {
	delete(l.allowed, principal)
}

// RequireAuth implements Authenticator.
func (l *Allowlist) RequireAuth(_ context.Context, principal Address) error {
	if l == nil {
		return ErrPrincipalNotAllowed
	}
	if _, ok := l.allowed[principal]; !ok {
		return fmt.Errorf("%w: %s", ErrPrincipalNotAllowed, principal)
	}
	return nil
}

// Proof is a recoverable secp256k1 signature over a call digest.
type Proof struct {
	Digest    [32]byte
	Signature []byte
}

type proofsKey struct{}

// WithProofs attaches signed proofs to the call context. Proofs already
// attached to the parent context are preserved.
func WithProofs(ctx context.Context, proofs ...Proof) context.Context {
	merged := append(ProofsFromContext(ctx), proofs...)
	return context.WithValue(ctx, proofsKey{}, merged)
}

// ProofsFromContext returns a copy of the proofs attached to ctx.
func ProofsFromContext(ctx context.Context) []Proof {
	if ctx == nil {
		return nil
	}
	proofs, _ := ctx.Value(proofsKey{}).([]Proof)
	return append([]Proof(nil), proofs...)
}

// Prove signs keccak256(payload) and returns the resulting proof.
func (k *PrivateKey) Prove(payload []byte) (Proof, error) {
	digest := crypto.Keccak256Hash(payload)
	sig, err := crypto.Sign(digest[:], k.PrivateKey)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Digest: digest, Signature: sig}, nil
}

// SignatureAuthenticator recovers the signer of each proof carried on the
// context and authorizes the principal when one of them matches.
type SignatureAuthenticator struct{}

// RequireAuth implements Authenticator.
func (SignatureAuthenticator) RequireAuth(ctx context.Context, principal Address) error {
	for _, proof := range ProofsFromContext(ctx) {
		pub, err := crypto.SigToPub(proof.Digest[:], proof.Signature)
		if err != nil {
			continue
		}
		if Address(crypto.PubkeyToAddress(*pub)) == principal {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingProof, principal)
}
