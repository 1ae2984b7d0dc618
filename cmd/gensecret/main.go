// Command gensecret prints a random key for SECRET_KEY or RETIRED_SECRET_KEYS.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytesLen = 32

func main() {
	fs := pflag.NewFlagSet("gensecret", pflag.ExitOnError)
	size := fs.IntP("bytes", "b", defaultSecretKeyBytesLen, "Key length in bytes")
	kid := fs.StringP("kid", "k", "", "Print as 'kid=secret' pair for RETIRED_SECRET_KEYS")
	_ = fs.Parse(os.Args[1:])

	secret, err := generate(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	if *kid != "" {
		fmt.Printf("%s=%s\n", *kid, secret)
		return
	}
	fmt.Println(secret)
}

// Hex encoded random key
func generate(size int) (string, error) {
	if size < 16 {
		return "", fmt.Errorf("key of %d bytes is too short, use 16 at least", size)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
