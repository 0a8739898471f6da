// Command admintoken signs an admin JWT with the server's admin secret so an
// operator can call the admin gRPC API. It reads the same config layers as
// the server.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/timevault/internal/flagx"
	"github.com/dmitrijs2005/timevault/internal/server/auth"
	"github.com/dmitrijs2005/timevault/internal/server/config"
)

func main() {
	var (
		operator string
		validity time.Duration
	)
	fs := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	fs.StringVar(&operator, "operator", "operator", "subject of the token")
	fs.DurationVar(&validity, "validity", time.Hour, "token lifetime")
	if err := flagx.ParseOwn(fs, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	token, err := auth.GenerateToken(operator, []byte(cfg.AdminSecretKey), validity)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
}
