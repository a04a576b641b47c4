package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/aussiebroadwan/sessiond/internal/session/app"
	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := keygen(os.Stdout, os.Args[2:]); err != nil {
			log.Fatalf("keygen: %v", err)
		}
		return
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// keygen prints a fresh key pair for every token kind as env assignments.
func keygen(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	bits := fs.Int("bits", 2048, "RSA modulus size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, name := range []string{"ACCESS_TOKEN", "REFRESH_TOKEN", "SESSION_TOKEN"} {
		kp, err := cryptox.GenerateRSAKeyPair(*bits)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s_PRIVATE_KEY=%s\n", name, kp.PrivateBase64())
		fmt.Fprintf(w, "%s_PUBLIC_KEY=%s\n", name, kp.PublicBase64())
	}
	return nil
}
