package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	NA       = "N/A"
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var snowflakeNode *snowflake.Node

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// UUIDint64 returns a sortable 64-bit unique id.
func UUIDint64() int64 {
	return snowflakeNode.Generate().Int64()
}

// UUID returns the string form of a snowflake id.
func UUID() string {
	return snowflakeNode.Generate().String()
}

func Sha256HashWithSalt(src string, salt string) string {
	h := sha256.New()
	h.Write([]byte(src + salt))
	return hex.EncodeToString(h.Sum(nil))
}

func GetSecretSalt() string {
	salt := os.Getenv("SHOPBOT_SECRET_SALT")
	if salt == "" {
		salt = "shopbot"
	}
	return salt
}

// IsDigits reports whether s is non-empty and consists only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FileExists checks the path exists and is not a directory.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !st.IsDir()
}

// SplitAndTrim splits s by sep and trims whitespace from every token.
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
