package jwk

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// DefaultRSAAlgorithm is used for RSA keys without an "alg" member.
const DefaultRSAAlgorithm = "RS256"

var rsaAlgorithms = map[string]crypto.Hash{
	"RS256": crypto.SHA256,
	"RS384": crypto.SHA384,
	"RS512": crypto.SHA512,
}

func rsaHash(alg string) (crypto.Hash, error) {
	h, ok := rsaAlgorithms[alg]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return h, nil
}

var (
	rsaPublicParams     = []string{"n", "e"}
	rsaPrivateParams    = []string{"n", "e", "d"}
	rsaPrivateOptionals = []string{"p", "q", "dp", "dq", "qi"}
	bigOne              = big.NewInt(1)
)

const (
	// MaxRSAModulusBits bounds the work spent on a single key object.
	MaxRSAModulusBits = 8192
	// Each base factors a genuine key with probability at least 1/2.
	maxPrimeRecoveryBase = int64(16)
)

// newRSAPublicKey builds a public key from the "n" and "e" parameters.
func newRSAPublicKey(p params) (*rsa.PublicKey, error) {
	if !p.all("n", "e") {
		return nil, fmt.Errorf("%w: modulus and public exponent are required", ErrInvalidKey)
	}
	n, e := p.get("n"), p.get("e")
	if n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: modulus must be positive", ErrInvalidKey)
	}
	if n.BitLen() > MaxRSAModulusBits {
		return nil, fmt.Errorf("%w: modulus of %d bits exceeds %d", ErrInvalidKey, n.BitLen(), MaxRSAModulusBits)
	}
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > math.MaxInt32 {
		return nil, fmt.Errorf("%w: public exponent out of range", ErrInvalidKey)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// newRSAPrivateKey builds a private key from "n", "e" and "d". The prime
// factors are taken from "p" and "q" when both are present and recovered
// from the private exponent otherwise. "dp", "dq" and "qi" are not read:
// Precompute derives the CRT values from the primes.
func newRSAPrivateKey(p params) (*rsa.PrivateKey, error) {
	pub, err := newRSAPublicKey(p)
	if err != nil {
		return nil, err
	}
	d := p.get("d")
	if d == nil || d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: private exponent must be positive", ErrInvalidKey)
	}
	if d.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("%w: private exponent must be smaller than the modulus", ErrInvalidKey)
	}
	key := &rsa.PrivateKey{PublicKey: *pub, D: d}

	if p.all("p", "q") {
		key.Primes = []*big.Int{p.get("p"), p.get("q")}
	} else {
		prime1, prime2, err := recoverPrimes(key.N, key.E, key.D)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		key.Primes = []*big.Int{prime1, prime2}
	}

	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key.Precompute()
	return key, nil
}

// recoverPrimes factors n given a matching exponent pair, following the
// probabilistic method of NIST SP 800-56B appendix C.
func recoverPrimes(n *big.Int, e int, d *big.Int) (*big.Int, *big.Int, error) {
	k := new(big.Int).Mul(d, big.NewInt(int64(e)))
	k.Sub(k, bigOne)
	if k.Sign() <= 0 || k.Bit(0) == 1 {
		return nil, nil, errors.New("private exponent does not match public exponent")
	}
	// ed-1 is a multiple of the Carmichael function of n, so 2^(ed-1) = 1
	// mod n for every matching exponent pair.
	if new(big.Int).Exp(big.NewInt(2), k, n).Cmp(bigOne) != 0 {
		return nil, nil, errors.New("private exponent does not match the modulus")
	}
	r := new(big.Int).Set(k)
	t := 0
	for r.Bit(0) == 0 {
		r.Rsh(r, 1)
		t++
	}

	nMinusOne := new(big.Int).Sub(n, bigOne)
	for g := int64(2); g < maxPrimeRecoveryBase; g++ {
		y := new(big.Int).Exp(big.NewInt(g), r, n)
		if y.Cmp(bigOne) == 0 || y.Cmp(nMinusOne) == 0 {
			continue
		}
		for i := 0; i < t; i++ {
			x := new(big.Int).Mul(y, y)
			x.Mod(x, n)
			if x.Cmp(bigOne) == 0 {
				prime1 := new(big.Int).GCD(nil, nil, new(big.Int).Sub(y, bigOne), n)
				if prime1.Cmp(bigOne) <= 0 || prime1.Cmp(n) >= 0 {
					break
				}
				prime2, rem := new(big.Int).QuoRem(n, prime1, new(big.Int))
				if rem.Sign() != 0 {
					break
				}
				if prime1.Cmp(prime2) < 0 {
					prime1, prime2 = prime2, prime1
				}
				return prime1, prime2, nil
			}
			if x.Cmp(nMinusOne) == 0 {
				break
			}
			y = x
		}
	}
	return nil, nil, errors.New("failed to recover prime factors from private exponent")
}

var (
	_ Signer   = (*RSASigner)(nil)
	_ Verifier = (*RSASigner)(nil)
	_ Verifier = (*RSAVerifier)(nil)
)

// RSASigner signs messages with RSASSA-PKCS1-v1_5. It also verifies
// signatures made with its own key.
type RSASigner struct {
	key      *rsa.PrivateKey
	alg      string
	hash     crypto.Hash
	verifier *RSAVerifier
}

// NewRSASigner returns a signer owning key. alg must be one of RS256, RS384
// or RS512.
func NewRSASigner(key *rsa.PrivateKey, alg string) (*RSASigner, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: RSA private key is nil", ErrInvalidKey)
	}
	h, err := rsaHash(alg)
	if err != nil {
		return nil, err
	}
	return &RSASigner{
		key:      key,
		alg:      alg,
		hash:     h,
		verifier: &RSAVerifier{key: &key.PublicKey, alg: alg, hash: h},
	}, nil
}

func (s *RSASigner) Sign(message []byte) ([]byte, error) {
	hasher := s.hash.New()
	hasher.Write(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, s.hash, hasher.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return signature, nil
}

func (s *RSASigner) Verify(message, signature []byte) error {
	return s.verifier.Verify(message, signature)
}

func (s *RSASigner) Algorithm() string { return s.alg }

func (s *RSASigner) Public() crypto.PublicKey { return &s.key.PublicKey }

// RSAVerifier checks RSASSA-PKCS1-v1_5 signatures.
type RSAVerifier struct {
	key  *rsa.PublicKey
	alg  string
	hash crypto.Hash
}

// NewRSAVerifier returns a verifier owning key.
func NewRSAVerifier(key *rsa.PublicKey, alg string) (*RSAVerifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: RSA public key is nil", ErrInvalidKey)
	}
	h, err := rsaHash(alg)
	if err != nil {
		return nil, err
	}
	return &RSAVerifier{key: key, alg: alg, hash: h}, nil
}

func (v *RSAVerifier) Verify(message, signature []byte) error {
	hasher := v.hash.New()
	hasher.Write(message)
	if err := rsa.VerifyPKCS1v15(v.key, v.hash, hasher.Sum(nil), signature); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return nil
}

func (v *RSAVerifier) Algorithm() string { return v.alg }

func (v *RSAVerifier) Public() crypto.PublicKey { return v.key }
