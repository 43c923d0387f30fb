package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/darasa/core/classroom"
	synceng "github.com/trezcool/darasa/core/sync"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	engine *synceng.Engine
	store  *classroom.Store
	queue  *synceng.Queue
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  login -username USERNAME - log in to the endpoint; the password will be prompted")
	fmt.Println("  logout                   - discard the session and the local snapshot")
	fmt.Println("  sync                     - pull the full data set and merge it locally")
	fmt.Println("  drain                    - push pending queued actions")
	fmt.Println("  queue                    - show pending queued actions")
	fmt.Println("  status                   - show local data counts")
	fmt.Println("  run                      - sync, then keep draining periodically until interrupted")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginUname := loginCmd.String("username", "", "The admin username. The password will be prompted next.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, string(pwd))
	case "logout":
		return cli.engine.Logout()
	case "sync":
		fmt.Println("sync:", cli.engine.FullSync(ctx))
		return nil
	case "drain":
		fmt.Printf("drained %d queued action(s); %d pending\n", cli.engine.DrainQueue(ctx), cli.queue.Len())
		return nil
	case "queue":
		return cli.showQueue()
	case "status":
		return cli.showStatus()
	case "run":
		return cli.runLoop()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(ctx context.Context, uname, pwd string) error {
	if err := cli.engine.Login(ctx, uname, pwd); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func (cli *commandLine) showQueue() error {
	entries := cli.queue.Entries()
	if len(entries) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("%d. attempts=%d queued=%s %s\n", i+1, e.Attempts, e.Timestamp.Format("2006-01-02 15:04:05"), e.Payload)
	}
	return nil
}

func (cli *commandLine) showStatus() error {
	state := cli.store.State()
	fmt.Printf("subjects=%d classes=%d students=%d tasks=%d scores=%d attendance=%d submissions=%d materials=%d schedules=%d\n",
		len(state.Subjects), len(state.Classes), len(state.Students), len(state.Tasks),
		len(state.Scores), len(state.Attendance), len(state.Submissions), len(state.Materials), len(state.Schedules))
	fmt.Printf("unread submissions: %d; pending queue: %d; logged in: %v\n",
		cli.store.UnreadSubmissions(), cli.queue.Len(), cli.engine.LoggedIn())

	classroom.SortSchedules(state.Schedules)
	for _, sch := range state.Schedules {
		fmt.Printf("  day %d period %d class %s\n", int(sch.Day), int(sch.Period), sch.ClassID)
	}
	return nil
}

func (cli *commandLine) runLoop() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, drained := cli.engine.Reconnect(ctx)
	fmt.Printf("initial sync: %s; drained %d queued action(s)\n", status, drained)

	cli.engine.Run(ctx)
	return nil
}
