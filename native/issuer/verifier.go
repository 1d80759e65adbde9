package issuer

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto/bn256"
)

// Proof carries a zero-knowledge proof as raw bn256 point material: A and C
// are G1 points, B is a G2 point, and PublicSignals is the 5-element public
// input vector. The accounting core never interprets the signals; only the
// verifier's boolean verdict matters.
type Proof struct {
	A             [2]*big.Int
	B             [2][2]*big.Int
	C             [2]*big.Int
	PublicSignals [5]*big.Int
}

// ProofVerifier is the opaque boolean oracle consulted during note creation.
type ProofVerifier interface {
	Verify(proof *Proof) (bool, error)
}

var errMalformedProof = errors.New("note issuer: malformed proof point")

// WellFormed checks that the proof's point material decodes onto the bn256
// curve. This is a structural sanity check run before the oracle call, not a
// validity judgement.
func (p *Proof) WellFormed() error {
	if p == nil {
		return errMalformedProof
	}
	if _, err := new(bn256.G1).Unmarshal(packPoints(p.A[0], p.A[1])); err != nil {
		return errMalformedProof
	}
	if _, err := new(bn256.G1).Unmarshal(packPoints(p.C[0], p.C[1])); err != nil {
		return errMalformedProof
	}
	g2 := packPoints(p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1])
	if _, err := new(bn256.G2).Unmarshal(g2); err != nil {
		return errMalformedProof
	}
	for _, signal := range p.PublicSignals {
		if signal == nil || signal.Sign() < 0 {
			return errMalformedProof
		}
	}
	return nil
}

// packPoints concatenates big-endian 32-byte limbs the way bn256 marshals
// curve points.
func packPoints(limbs ...*big.Int) []byte {
	buf := make([]byte, 32*len(limbs))
	for i, limb := range limbs {
		if limb == nil || limb.Sign() < 0 || limb.BitLen() > 256 {
			return nil
		}
		limb.FillBytes(buf[32*i : 32*(i+1)])
	}
	return buf
}

// StaticVerifier returns a fixed verdict. Used in dev mode and tests where
// the real verifier deployment is out of scope.
type StaticVerifier struct {
	Valid bool
}

func (v StaticVerifier) Verify(*Proof) (bool, error) {
	return v.Valid, nil
}
