// Package main generates an age key pair for the credential vault.
package main

import (
	"fmt"
	"os"

	"github.com/flowdeck/console/internal/secrets"
)

func main() {
	publicKey, privateKey, err := secrets.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key pair: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("# API server (encryption only):")
	fmt.Printf("AGE_PUBLIC_KEY=%s\n", publicKey)
	fmt.Println("# Sync worker (decryption):")
	fmt.Printf("AGE_PRIVATE_KEY=%s\n", privateKey)
}
