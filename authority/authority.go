// Package authority signs the chain head on behalf of the single authority
// that runs the ledger, so a served or exported chain can be tied to a
// known signer.
package authority

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"voting-ledger/models"
)

var (
	ErrUnminedBlock   = errors.New("cannot attest an unmined block")
	ErrBadSignature   = errors.New("invalid attestation signature")
	ErrSignerMismatch = errors.New("attestation signed by an unexpected key")
	ErrHeadMismatch   = errors.New("attestation does not match the chain head")
)

// Attestation is a signature over the chain head and chain length.
type Attestation struct {
	Index     uint64         `json:"index"`
	BlockHash string         `json:"block_hash"`
	Length    int            `json:"length"`
	Signer    common.Address `json:"signer"`
	Signature hexutil.Bytes  `json:"signature"`
}

type Authority struct {
	key *ecdsa.PrivateKey
}

// New creates an authority with a freshly generated key.
func New() (*Authority, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("cannot generate authority key: %w", err)
	}
	return &Authority{key: key}, nil
}

// FromHex restores an authority from a hex private key, with or without
// the 0x prefix.
func FromHex(privHex string) (*Authority, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("cannot restore authority key: %w", err)
	}
	return &Authority{key: key}, nil
}

func (a *Authority) Address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

// PrivateKeyHex returns the 0x prefixed private key, for use with FromHex.
func (a *Authority) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(a.key))
}

// Attest signs the given head block of a chain holding length blocks.
func (a *Authority) Attest(head models.Block, length int) (*Attestation, error) {
	if !head.IsMined() {
		return nil, ErrUnminedBlock
	}
	digest := attestationDigest(head.Hash, head.Index, length)
	sig, err := crypto.Sign(digest, a.key)
	if err != nil {
		return nil, fmt.Errorf("cannot sign chain head: %w", err)
	}
	return &Attestation{
		Index:     head.Index,
		BlockHash: head.Hash,
		Length:    length,
		Signer:    a.Address(),
		Signature: sig,
	}, nil
}

// Verify checks the attestation was signed by this authority.
func (a *Authority) Verify(att *Attestation) error {
	if err := Verify(att); err != nil {
		return err
	}
	if att.Signer != a.Address() {
		return fmt.Errorf("%w: %s", ErrSignerMismatch, att.Signer.Hex())
	}
	return nil
}

// Verify recovers the signing key and checks it matches att.Signer.
func Verify(att *Attestation) error {
	if att == nil {
		return ErrBadSignature
	}
	digest := attestationDigest(att.BlockHash, att.Index, att.Length)
	pub, err := crypto.SigToPub(digest, att.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != att.Signer {
		return fmt.Errorf("%w: recovered %s, claimed %s", ErrSignerMismatch, signer.Hex(), att.Signer.Hex())
	}
	return nil
}

// VerifyChain checks the attestation signature and that it covers the last
// block of blocks.
func VerifyChain(att *Attestation, blocks []models.Block) error {
	if err := Verify(att); err != nil {
		return err
	}
	if len(blocks) == 0 {
		return ErrHeadMismatch
	}
	head := blocks[len(blocks)-1]
	if att.Length != len(blocks) || att.Index != head.Index || att.BlockHash != head.Hash {
		return fmt.Errorf("%w: attested block %d (%s), chain head %d (%s)",
			ErrHeadMismatch, att.Index, att.BlockHash, head.Index, head.Hash)
	}
	return nil
}

// attestationDigest is keccak256(hash bytes || index || length), with the
// integers as 8 byte big endian.
func attestationDigest(blockHash string, index uint64, length int) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], index)
	binary.BigEndian.PutUint64(buf[8:], uint64(length))
	return crypto.Keccak256(common.FromHex(blockHash), buf[:])
}
