// Command gen_credential mints shared password strings for the passwords
// file. Run with an optional count:
//
//	go run scripts/gen_credential.go 5
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sethvargo/go-password/password"
)

func main() {
	count := 1
	if len(os.Args) > 1 {
		parsed, err := strconv.Atoi(os.Args[1])
		if err != nil || parsed < 1 {
			log.Fatalf("Usage: gen_credential [count]")
		}
		count = parsed
	}

	// Lowercase letters and digits only: these get typed on TV remotes.
	gen, err := password.NewGenerator(&password.GeneratorInput{
		LowerLetters: password.LowerLetters,
		Digits:       password.Digits,
	})
	if err != nil {
		log.Fatalf("build generator: %v", err)
	}

	for i := 0; i < count; i++ {
		secret, err := gen.Generate(12, 3, 0, true, false)
		if err != nil {
			log.Fatalf("generate credential: %v", err)
		}
		fmt.Println(secret)
	}
}
