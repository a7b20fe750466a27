package agent

import (
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Environment holds the signals a device fingerprint is derived from.
type Environment struct {
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
	Now          time.Time
}

// LocalEnvironment describes the current process as a client.
func LocalEnvironment() Environment {
	return Environment{
		UserAgent: fmt.Sprintf("chatweet-sessionctl/1.0 (%s; %s)", runtime.GOOS, runtime.GOARCH),
		Now:       time.Now(),
	}
}

// Fingerprint derives a device id from env plus a random nonce. It is
// practically unique per install, not a security boundary: every input is
// under the client's control.
func Fingerprint(env Environment) string {
	nonce := strconv.FormatUint(rand.Uint64(), 36)
	combined := fmt.Sprintf("%s-%dx%d-%d-%s",
		env.UserAgent,
		env.ScreenWidth, env.ScreenHeight,
		env.Now.UnixMilli(),
		nonce,
	)
	return strconv.FormatUint(xxhash.Sum64String(combined), 36) + nonce
}
