package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// GenesisPrevHash is the sentinel stored as the previous hash of block 0.
const GenesisPrevHash = "0"

// ErrMalformedBlock is returned for blocks whose fields cannot be encoded
// canonically.
var ErrMalformedBlock = errors.New("malformed block")

type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PrevHash     string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// NewBlock returns an unmined block. The transactions are copied so the
// block owns them exclusively.
func NewBlock(index uint64, timestamp float64, txs []Transaction, prevHash string) *Block {
	return &Block{
		Index:        index,
		Timestamp:    timestamp,
		Transactions: cloneTransactions(txs),
		PrevHash:     prevHash,
	}
}

// Helper struct for hash calculation. Keys are declared in sorted order
// and the stored hash is left out.
type blockForHash struct {
	Index        uint64               `json:"index"`
	Nonce        uint64               `json:"nonce"`
	PrevHash     string               `json:"previous_hash"`
	Timestamp    float64              `json:"timestamp"`
	Transactions []transactionForHash `json:"transactions"`
}

// CanonicalBytes returns the byte string the block hash is computed over.
func (b *Block) CanonicalBytes() ([]byte, error) {
	if !finite(b.Timestamp) {
		return nil, fmt.Errorf("%w: block %d timestamp is not finite", ErrMalformedBlock, b.Index)
	}
	// encoding/json replaces invalid UTF-8 with U+FFFD, which would make
	// distinct strings hash alike.
	if !utf8.ValidString(b.PrevHash) {
		return nil, fmt.Errorf("%w: block %d previous hash is not valid UTF-8", ErrMalformedBlock, b.Index)
	}
	txs := make([]transactionForHash, len(b.Transactions))
	for i, tx := range b.Transactions {
		if !finite(tx.Timestamp) {
			return nil, fmt.Errorf("%w: block %d transaction %d timestamp is not finite",
				ErrMalformedBlock, b.Index, i)
		}
		if !utf8.ValidString(tx.VoterID) || !utf8.ValidString(tx.CandidateID) {
			return nil, fmt.Errorf("%w: block %d transaction %d is not valid UTF-8",
				ErrMalformedBlock, b.Index, i)
		}
		txs[i] = tx.forHash()
	}
	return json.Marshal(blockForHash{
		Index:        b.Index,
		Nonce:        b.Nonce,
		PrevHash:     b.PrevHash,
		Timestamp:    b.Timestamp,
		Transactions: txs,
	})
}

// CalculateHash computes the canonical hash of the block at its current
// nonce. It never reads or writes b.Hash.
func (b *Block) CalculateHash(alg HashAlgorithm) (string, error) {
	data, err := b.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return alg.Sum(data), nil
}

// IsMined reports whether a hash has been committed into the block.
func (b *Block) IsMined() bool {
	return b.Hash != ""
}

// Validate checks the stored hash against a recomputation and the
// difficulty prefix. Linkage is the chain's concern.
func (b *Block) Validate(alg HashAlgorithm, difficulty int) bool {
	calculated, err := b.CalculateHash(alg)
	if err != nil || calculated != b.Hash {
		return false
	}
	return MeetsDifficulty(b.Hash, difficulty)
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := *b
	c.Transactions = cloneTransactions(b.Transactions)
	return &c
}

// MeetsDifficulty reports whether hash starts with difficulty '0' hex
// characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

func cloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
