package randstr

import (
	"crypto/rand"
	"math/big"
)

type Generator struct {
	alphabet []byte
}

func New(alphabet []byte) *Generator {
	return &Generator{alphabet: alphabet}
}

// GenerateRandomString returns a string of length n drawn uniformly from the
// generator's alphabet using crypto/rand.
func (g *Generator) GenerateRandomString(n int) string {
	max := big.NewInt(int64(len(g.alphabet)))

	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the system source is broken
			panic(err)
		}
		b[i] = g.alphabet[idx.Int64()]
	}

	return string(b)
}
