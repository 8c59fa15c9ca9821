package numbering

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultMax is the size of the serial number space for a raffle. Numbers run
// from 1 to DefaultMax inclusive and render zero-padded to six digits.
const DefaultMax = 1_000_000

// Space is a finite serial number range with uniform sampling. It carries no
// state beyond its bound; exclusion is the caller's concern.
type Space struct {
	Max int
}

func NewSpace(max int) Space {
	if max <= 0 {
		max = DefaultMax
	}
	return Space{Max: max}
}

// Sample draws a uniform value in [1, Max] that is not in exclude. Hitting an
// excluded value is an expected outcome and is simply redrawn, so the caller
// does not need an exhaustive exclusion set: collisions against persisted
// numbers are detected downstream and fed back via exclude on the next call.
func (s Space) Sample(exclude map[int]struct{}) int {
	for {
		n := s.draw()
		if _, taken := exclude[n]; !taken {
			return n
		}
	}
}

func (s Space) draw() int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(s.Max)))
	if err != nil {
		// crypto/rand only fails if the platform entropy source is broken;
		// nothing sensible to do but stop.
		panic(fmt.Sprintf("numbering: entropy source failed: %v", err))
	}
	return int(v.Int64()) + 1
}

// Format renders a serial number in its zero-padded display form.
func (s Space) Format(n int) string {
	width := len(fmt.Sprintf("%d", s.Max-1))
	return fmt.Sprintf("%0*d", width, n)
}
