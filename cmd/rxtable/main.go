package main

import (
	"flag"
	"fmt"
	"log"
)

const usage = `usage: rxtable [-db=<dsn>] <command> [<args>]

Configuration flags:

   -db         Postgres connection string. If unset, rxtable runs against an
               in-memory store seeded with a handful of demo rows.

Commands
   repl        Runs a read-eval-print-loop of mutations and live queries
   help        Display help message
`

var dbFlag = flag.String("db", "", "postgres connection string")

func main() {
	flag.Parse()
	log.SetFlags(0)
	args := flag.Args()
	if len(args) == 0 {
		log.Printf("missing command\n\n")
		fmt.Print(usage)
		return
	}
	rest := args[1:]
	var err error
	switch cmd := args[0]; cmd {
	case "repl":
		err = repl(rest)
	case "help":
		fmt.Print(usage)
	default:
		log.Printf("unknown command: %s\n\n", cmd)
		fmt.Print(usage)
	}
	if err != nil {
		log.Fatalf("%s error: %+v\n", args[0], err)
	}
}
