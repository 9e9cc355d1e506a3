package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"voting-ledger/authority"
	"voting-ledger/config"
	"voting-ledger/models"
)

// go-ethereum's well known test key
const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestNewFromConfig(t *testing.T) {
	c := qt.New(t)

	cfg := config.NewConfig()
	cfg.Difficulty = 1
	cfg.HashAlgorithm = "keccak256"
	cfg.MaxAttempts = 100000
	cfg.SessionDuration = time.Hour
	cfg.AuthorityKey = "0x" + testKey

	vs, err := NewFromConfig(context.Background(), cfg, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(vs.Difficulty(), qt.Equals, 1)
	c.Assert(vs.HashAlgorithm(), qt.Equals, models.Keccak256)
	c.Assert(vs.Authority(), qt.Not(qt.IsNil))
	want, err := authority.FromHex(testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(vs.Authority().Address(), qt.Equals, want.Address())
	_, ok := vs.Session().Deadline()
	c.Assert(ok, qt.IsTrue)
	c.Assert(vs.LastBlock().Hash[:1], qt.Equals, "0")
}

func TestNewFromConfigWithoutAuthority(t *testing.T) {
	c := qt.New(t)

	cfg := config.NewConfig()
	cfg.Difficulty = 0
	vs, err := NewFromConfig(context.Background(), cfg, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(vs.Authority(), qt.IsNil)
	_, err = vs.Attest()
	c.Assert(err, qt.ErrorIs, ErrNoAuthority)
}

func TestNewFromConfigBadKey(t *testing.T) {
	c := qt.New(t)

	cfg := config.NewConfig()
	cfg.Difficulty = 0
	cfg.AuthorityKey = "not-hex"
	_, err := NewFromConfig(context.Background(), cfg, nil)
	c.Assert(err, qt.ErrorMatches, "cannot load authority key: .*")
}
