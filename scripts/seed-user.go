// Package main is a development utility for seeding a usable local account
// without running the full registration flow. It prints a random password with
// its bcrypt hash pre-computed, a ready-to-run SQL INSERT for the users table,
// and a fresh PTN_JWT_SECRET value. Do not use generated credentials in
// production — register through the API instead.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	passwordBytes := make([]byte, 18)
	if _, err := rand.Read(passwordBytes); err != nil {
		log.Fatal(err)
	}
	password := base64.RawURLEncoding.EncodeToString(passwordBytes)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		log.Fatal(err)
	}
	secret := hex.EncodeToString(secretBytes)

	fmt.Println("==========================================================")
	fmt.Println("Development Account")
	fmt.Println("==========================================================")
	fmt.Printf("\nUsername: admin\n")
	fmt.Printf("\nPassword: %s\n", password)
	fmt.Printf("\nHash: %s\n", string(hashBytes))
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO users (username, email, password_hash)
VALUES ('admin', 'admin@dev.local', '%s');
`, string(hashBytes))
	fmt.Println("\n==========================================================")
	fmt.Printf("JWT Secret: export PTN_JWT_SECRET=%s\n", secret)
	fmt.Println("==========================================================")
}
