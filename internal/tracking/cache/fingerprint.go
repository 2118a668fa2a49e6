package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Fingerprint returns a deterministic key for a fetch request.
// Extra params are part of the key in the order given.
func Fingerprint(chain domain.Chain, address string, from, to time.Time, params ...string) string {
	var b strings.Builder
	b.WriteString(string(chain))
	b.WriteByte('|')
	b.WriteString(address)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(from.Unix(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(to.Unix(), 10))
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
