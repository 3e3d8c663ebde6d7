package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/kwetu-lab/elimu/apps/api/echo"
	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/session"
	"github.com/kwetu-lab/elimu/core/track"
	"github.com/kwetu-lab/elimu/core/training"
	"github.com/kwetu-lab/elimu/services/agentws"
	"github.com/kwetu-lab/elimu/services/backendapi"
	emailsvc "github.com/kwetu-lab/elimu/services/email"
	logsvc "github.com/kwetu-lab/elimu/services/logger"
	"github.com/kwetu-lab/elimu/storage/inmem"
)

func main() {
	conf := core.InitConf()
	core.InitValidators()
	training.RegisterValidators()

	stdLog := log.New(os.Stdout, conf.AppName+" : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = core.NewStdLogger(stdLog)
	} else {
		logger = logsvc.NewRollbarLogger(stdLog, conf)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var (
		repo    training.Repository
		rec     track.Recorder
		applier agent.Applier
	)
	if conf.Backend.BaseURL == "" {
		// no content backend configured; run off the in-memory store
		db := inmem.Open()
		repo = inmem.NewTrainingRepository(db)
		rec = inmem.NewLogRecorder(db)
		applier = noopApplier{}
		logger.Warn("no backend configured, using in-memory storage")
	} else {
		client := backendapi.NewClient(conf, logger)
		repo = client
		rec = client
		applier = client
	}

	trainingSvc := training.NewService(repo)
	transport := agentws.NewTransport(conf)
	sessions := session.NewRegistry(trainingSvc, applier, transport, rec, mailSvc, conf, logger)
	defer sessions.Close()

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:        conf.Server.Addr,
			TrainingSvc: trainingSvc,
			Sessions:    sessions,
			Conf:        conf,
		},
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("server shutdown", err)
		}
	}()

	app.Start()
}

// noopApplier stands in for the agent backend when none is configured.
type noopApplier struct{}

func (noopApplier) ApplyAgentActions(_ context.Context, _ agent.InstructionRequest) (agent.InstructionResult, error) {
	return agent.InstructionResult{Success: false, Message: "agent backend not configured"}, nil
}
