package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	synceng "github.com/trezcool/darasa/core/sync"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/kvstore"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(err)

	var appLog core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		appLog = logsvc.NewConsoleLogger(logger)
	} else {
		appLog = logsvc.NewRollbarLogger(logger, conf)
	}

	// set up local persistence
	kv, err := kvstore.NewFileKV(conf.Client.DataDir)
	errAndDie(err)

	store := classroom.NewStore(kv, conf.Client.SnapshotKey)
	store.Load()

	queue := synceng.NewQueue(kv, conf.Client.QueueKey)
	errAndDie(queue.Load())

	gw := synceng.NewHTTPGateway(conf.Client)
	engine := synceng.NewEngine(store, gw, queue, kv, conf.Client, appLog)

	// start CLI
	cli := commandLine{
		engine: engine,
		store:  store,
		queue:  queue,
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
