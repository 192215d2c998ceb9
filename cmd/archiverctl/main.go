// Command archiverctl is a small operator tool for the Store-only surface
// described in spec.md §6: resetting a permanently failed job so the
// dispatcher will pick it up again, and restarting a job from an earlier
// Pending* checkpoint.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/mitchellh/cli"

	"github.com/vodarchiver/archiver/job"
)

func main() {
	c := cli.NewCLI("archiverctl", "0.1.0")
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"reset":   func() (cli.Command, error) { return &resetCommand{}, nil },
		"restart": func() (cli.Command, error) { return &restartCommand{}, nil },
		"show":    func() (cli.Command, error) { return &showCommand{}, nil },
	}

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitStatus)
}

func openStore(databaseURL string) (job.Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return job.NewPostgresStore(db), nil
}

type resetCommand struct{}

func (c *resetCommand) Synopsis() string { return "clear the Failed flag on a job so it can run again" }

func (c *resetCommand) Help() string {
	return "Usage: archiverctl reset -database-url=<url> -vod-id=<id> [-clear-fail-count]"
}

func (c *resetCommand) Run(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	databaseURL := fs.String("database-url", "", "Postgres connection string")
	vodID := fs.String("vod-id", "", "VodId of the job to reset")
	clearFailCount := fs.Bool("clear-fail-count", false, "also reset FailCount to zero")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *databaseURL == "" || *vodID == "" {
		fmt.Fprintln(os.Stderr, c.Help())
		return 1
	}

	store, err := openStore(*databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := store.ResetFailure(context.Background(), *vodID, *clearFailCount); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("reset failure on %s\n", *vodID)
	return 0
}

type restartCommand struct{}

func (c *restartCommand) Synopsis() string { return "set a job's Stage to an earlier Pending* checkpoint" }

func (c *restartCommand) Help() string {
	return "Usage: archiverctl restart -database-url=<url> -vod-id=<id> -stage=<PendingStage>"
}

func (c *restartCommand) Run(args []string) int {
	fs := flag.NewFlagSet("restart", flag.ContinueOnError)
	databaseURL := fs.String("database-url", "", "Postgres connection string")
	vodID := fs.String("vod-id", "", "VodId of the job to restart")
	stage := fs.String("stage", string(job.Pending), "Stage to rewind to, one of the Pending* checkpoints")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *databaseURL == "" || *vodID == "" {
		fmt.Fprintln(os.Stderr, c.Help())
		return 1
	}
	target := job.Stage(*stage)
	if target.Priority() < 0 {
		fmt.Fprintf(os.Stderr, "unknown stage %q\n", *stage)
		return 1
	}

	store, err := openStore(*databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := store.SetStage(context.Background(), *vodID, target); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("restarted %s at stage %s\n", *vodID, target)
	return 0
}

type showCommand struct{}

func (c *showCommand) Synopsis() string { return "print a job's current row" }

func (c *showCommand) Help() string {
	return "Usage: archiverctl show -database-url=<url> -vod-id=<id>"
}

func (c *showCommand) Run(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	databaseURL := fs.String("database-url", "", "Postgres connection string")
	vodID := fs.String("vod-id", "", "VodId of the job to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *databaseURL == "" || *vodID == "" {
		fmt.Fprintln(os.Stderr, c.Help())
		return 1
	}

	store, err := openStore(*databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	j, err := store.Get(context.Background(), *vodID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("VodId:       %s\n", j.VodID)
	fmt.Printf("Stage:       %s\n", j.Stage)
	fmt.Printf("Description: %s\n", j.Description)
	fmt.Printf("Failed:      %t\n", j.Failed)
	fmt.Printf("FailCount:   %d\n", j.FailCount)
	fmt.Printf("FailReason:  %s\n", j.FailReason)
	fmt.Printf("LeasedBy:    %s\n", j.LeasedBy)
	return 0
}
