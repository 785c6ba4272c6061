package config

import (
	"os"
	"strings"
)

// ApplyEnv reads environment variables that are not represented by dedicated
// CLI flags in the serve command.
func (c *Config) ApplyEnv() error {
	if c == nil {
		return nil
	}
	c.APIKeys = loadAPIKeysFromEnv()
	return nil
}

// loadAPIKeysFromEnv scans env vars matching BOARD_SERVICE_API_KEYS_<USER_ID>=<key>[,<key>...]
// and returns a map from key value to user ID. Comma-separated values let one
// user hold several keys during rotation.
func loadAPIKeysFromEnv() map[string]string {
	const prefix = "BOARD_SERVICE_API_KEYS_"
	result := map[string]string{}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		eqIdx := strings.IndexByte(env, '=')
		if eqIdx < 0 {
			continue
		}
		userID := strings.ToLower(strings.TrimSpace(env[len(prefix):eqIdx]))
		if userID == "" {
			continue
		}
		for _, key := range strings.Split(env[eqIdx+1:], ",") {
			keyValue := strings.TrimSpace(key)
			if keyValue == "" {
				continue
			}
			result[keyValue] = userID
		}
	}
	return result
}
