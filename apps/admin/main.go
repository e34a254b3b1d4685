package main

import (
	"log"
	"os"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/token"
	"github.com/trezcool/classmirror/services/canvas"
	"github.com/trezcool/classmirror/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.OpenAdmin(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(db))

	svcLogger := core.NewStdLogger(logger)

	// start CLI
	cli := commandLine{
		db:       db,
		tokenSvc: token.NewService(database.NewTokenRepository(db), canvas.NewClient(svcLogger), svcLogger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
