//go:build m2mtest

package security

// DeterministicNonceSource returns a RandSource that emits a fixed counter
// sequence instead of CSPRNG output, for reproducible test vectors. It is
// gated behind the m2mtest build tag and therefore cannot be linked into a
// release binary.
func DeterministicNonceSource(seed byte) RandSource {
	return &counterSource{next: seed}
}

type counterSource struct {
	next byte
}

func (c *counterSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = c.next
		c.next++
	}
	return len(p), nil
}
