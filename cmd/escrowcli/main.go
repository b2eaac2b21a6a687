// Command escrowcli creates keys and signs reservation and transfer authorizations for the escrow ledger.
// The signed output is the JSON body the HTTP API accepts.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
