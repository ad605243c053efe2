package prescription

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newCode returns an RX-<unix millis>-<9 base36 chars> code.
func newCode(now time.Time) (string, error) {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("prescription code: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("RX-%d-%s", now.UnixMilli(), suffix), nil
}
