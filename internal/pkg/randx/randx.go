/*
Package randx provides functions for generating unique identifiers.

Message, session and slash invocation ids are standard UUIDs. Peer-facing short tokens
use a cryptographically secure Base62 alphabet.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))
)

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// SessionID identifies one websocket connection.
func SessionID() string {
	return uuid.New().String()
}

// InvocationID identifies one pending slash command invocation.
func InvocationID() string {
	return uuid.New().String()
}

// Token returns n random Base62 characters read from crypto/rand.
func Token(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for token: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}
