package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/trezcool/darasa/api"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/kvstore"
)

const serverSnapshotKey = "server_data"

func main() {
	logger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(logger, err)

	var appLog core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		appLog = logsvc.NewConsoleLogger(logger)
	} else {
		appLog = logsvc.NewRollbarLogger(logger, conf)
	}

	// server-side persistence: SQL when a database user is configured,
	// plain files otherwise
	var kv core.KV
	if conf.Server.Database.User != "" {
		db, err := kvstore.Open(conf.Server.Database)
		errAndDie(logger, err)
		defer db.Close()
		kv, err = kvstore.NewSQLKV(db)
		errAndDie(logger, err)
	} else {
		kv, err = kvstore.NewFileKV(filepath.Join(conf.Client.DataDir, "server"))
		errAndDie(logger, err)
	}

	store := classroom.NewStore(kv, serverSnapshotKey)
	store.Load()

	app := api.NewServer(&api.Options{
		Conf:  conf,
		Store: store,
		Log:   appLog,
	})
	app.Start()
}

func errAndDie(logger *log.Logger, err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
