package message

import (
	"github.com/forPelevin/gomoji"
)

// ValidEmoji reports whether s is exactly one recognized emoji.
func ValidEmoji(s string) bool {
	if s == "" {
		return false
	}
	_, err := gomoji.GetInfo(s)
	return err == nil
}
