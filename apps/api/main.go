package main

import (
	"context"
	"fmt"
	"log"
	"os"

	echoapi "github.com/trezcool/classmirror/apps/api/echo"
	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
	syncsvc "github.com/trezcool/classmirror/core/sync"
	"github.com/trezcool/classmirror/core/token"
	"github.com/trezcool/classmirror/services/canvas"
	emailsvc "github.com/trezcool/classmirror/services/email"
	"github.com/trezcool/classmirror/services/logsvc"
	"github.com/trezcool/classmirror/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Critical(fmt.Sprintf("opening database: %v", err), err)
		os.Exit(1)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Ping(db); err != nil {
		logger.Critical(fmt.Sprintf("pinging database: %v", err), err)
		os.Exit(1)
	}
	if err = database.Migrate(db); err != nil {
		logger.Critical(fmt.Sprintf("migrating database: %v", err), err)
		os.Exit(1)
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	client := canvas.NewClient(logger)

	courseRepo := database.NewCourseRepository(db)
	mappingRepo := database.NewMappingRepository(db)
	asgRepo := database.NewAssignmentRepository(db)
	conflictRepo := database.NewConflictRepository(db)
	tokenRepo := database.NewTokenRepository(db)

	courseSvc := course.NewService(courseRepo, mappingRepo, logger)
	asgSvc := assignment.NewService(asgRepo, logger)
	conflictSvc := conflict.NewService(db, conflictRepo, courseRepo, asgRepo, logger)
	tokenSvc := token.NewService(tokenRepo, client, logger)
	syncSvc := syncsvc.NewService(
		client, tokenSvc, db,
		courseRepo, courseSvc,
		asgRepo, asgSvc,
		conflictSvc, mailSvc, logger,
	)

	validate, translator := core.NewValidator()

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(echoapi.ServerDeps{
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		SyncSvc:     syncSvc,
		ConflictSvc: conflictSvc,
		CourseSvc:   courseSvc,
		AsgSvc:      asgSvc,
		TokenSvc:    tokenSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Critical(fmt.Sprintf("server error: %v", err), err)
		os.Exit(1)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Critical(fmt.Sprintf("could not force stop server: %v", err), err)
				os.Exit(1)
			}
		}
	}
}
