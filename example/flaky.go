package main

import (
	"errors"
	"math/rand/v2"

	"github.com/jpalmerr/envboard"
)

var errInjected = errors.New("injected bus error")

// flakyVOC fails a fraction of reads of the wrapped sensor.
type flakyVOC struct {
	next     envboard.VOCSensor
	failRate float64
}

func newFlakyVOC(next envboard.VOCSensor, failRate float64) *flakyVOC {
	return &flakyVOC{next: next, failRate: failRate}
}

func (f *flakyVOC) ReadTVOC() (int, error) {
	if rand.Float64() < f.failRate {
		return 0, errInjected
	}
	return f.next.ReadTVOC()
}
