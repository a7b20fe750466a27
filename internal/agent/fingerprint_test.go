package agent

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	env := Environment{
		UserAgent:    "Mozilla/5.0",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	a := Fingerprint(env)
	b := Fingerprint(env)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]+$`), a)
	assert.NotEqual(t, a, b, "nonce must make identical environments distinct")
}
