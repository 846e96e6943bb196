package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateKey joins parts with ":".
func GenerateKey(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}

// HashKey is the hex MD5 of s, used to keep keys short for long inputs.
func HashKey(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// BuildPattern matches every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
