package service

import (
	"math/rand"
	"regexp"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "FB"
	base36            = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLen         = 4
)

var orderNumberPattern = regexp.MustCompile(`^FB\d{8}[A-Z0-9]{4}$`)

// GenerateOrderNumber builds FB + YYYYMMDD (UTC) + 4 random base-36 characters.
// Uniqueness is left to the store's unique index.
func GenerateOrderNumber(now time.Time) string {
	var b strings.Builder
	b.Grow(len(orderNumberPrefix) + 8 + suffixLen)
	b.WriteString(orderNumberPrefix)
	b.WriteString(now.UTC().Format("20060102"))
	for i := 0; i < suffixLen; i++ {
		b.WriteByte(base36[rand.Intn(len(base36))])
	}
	return b.String()
}

// NormalizeOrderNumber returns the canonical (upper-case) form.
func NormalizeOrderNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func ValidOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}
