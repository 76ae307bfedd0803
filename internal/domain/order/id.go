package order

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBaseID generates a base order id of the form ORD-<millis base36>-<rand>.
// The millisecond component keeps ids roughly sortable by creation time and
// the random suffix makes collisions improbable without central sequencing.
func NewBaseID() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	return "ORD-" + ts + "-" + randAlnum(5)
}

// LineID derives the id for the line at 1-based position pos out of n lines.
// Single-line orders reuse the base id unchanged; multi-line orders append
// the position: BASE-1, BASE-2, ...
func LineID(baseID string, pos, n int) string {
	if n <= 1 {
		return baseID
	}
	return fmt.Sprintf("%s-%d", baseID, pos)
}

// GroupID collapses a line id back to its base order id by keeping the first
// three hyphen-delimited segments, so ORD-X-Y-2 folds back to ORD-X-Y.
func GroupID(lineID string) string {
	parts := strings.SplitN(lineID, "-", 4)
	if len(parts) < 4 {
		return lineID
	}
	return strings.Join(parts[:3], "-")
}

func randAlnum(n int) string {
	buf := make([]byte, n)
	// rand.Read never fails on supported platforms.
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = idAlphabet[int(buf[i])%len(idAlphabet)]
	}
	return string(buf)
}
