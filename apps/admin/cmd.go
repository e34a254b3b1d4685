package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/classmirror/core/token"
	"github.com/trezcool/classmirror/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *database.DB
	tokenSvc token.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [COMMAND] - run database migrations (default: up)")
	fmt.Println("  settoken -user USER_ID [-url BASE_URL] - store a user's Canvas token; the token will be prompted next")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setTokenCmd := flag.NewFlagSet("settoken", flag.ExitOnError)
	setTokenUser := setTokenCmd.String("user", "", "The user's id.")
	setTokenURL := setTokenCmd.String("url", "", "The institution's Canvas base URL; defaults to the configured one.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])
	case "settoken":
		if err := setTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setTokenUser == "" {
			setTokenCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter Canvas token:")
		tok, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(tok) == 0 {
			setTokenCmd.Usage()
			return errHelp
		}
		return cli.setToken(*setTokenUser, *setTokenURL, string(tok))
	default:
		cli.printUsage()
		return errHelp
	}
}
