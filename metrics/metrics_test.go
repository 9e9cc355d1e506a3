package metrics

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	c := qt.New(t)

	col := NewCollector()
	col.ObserveMining(0, 12, time.Millisecond, nil)
	col.ObserveMining(1, 30, 2*time.Millisecond, nil)
	col.ObserveMining(2, 5, time.Millisecond, errors.New("limit"))
	col.ObserveValidation(nil)
	col.ObserveValidation(nil)
	col.ObserveValidation(errors.New("bad link"))
	col.ObserveVote()

	c.Assert(testutil.ToFloat64(col.BlocksMined), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(col.HashAttempts), qt.Equals, 47.0)
	c.Assert(testutil.ToFloat64(col.MiningFailures), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(col.Validations.WithLabelValues("valid")), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(col.Validations.WithLabelValues("invalid")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(col.VotesCast), qt.Equals, 1.0)
}

func TestRegisterTwice(t *testing.T) {
	c := qt.New(t)

	reg := prometheus.NewRegistry()
	NewCollector().Register(reg)
	// a second collector with the same names is logged and skipped
	NewCollector().Register(reg)

	families, err := reg.Gather()
	c.Assert(err, qt.IsNil)
	c.Assert(len(families) > 0, qt.IsTrue)
}
