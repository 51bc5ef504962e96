package main

import (
	"log"

	vaultd "revault/services/vaultd"
)

func main() {
	if err := vaultd.Main(); err != nil {
		log.Fatalf("vaultd: %v", err)
	}
}
