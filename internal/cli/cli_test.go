package cli

import (
	"github.com/roach88/studybot/internal/config"
)

// testEnv returns a lookup that only sees the given STUDYBOT_* variables,
// given without prefix as key, value pairs.
func testEnv(kv ...string) config.LookupFunc {
	env := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		env[config.EnvPrefix+kv[i]] = kv[i+1]
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
