package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"confprog/internal/ics"
	appLog "confprog/internal/log"
)

// runExport writes one session's calendar file.
func runExport(args []string) error {
	var flags flagConfig
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	registerCommonFlags(fs, &flags)
	id := fs.String("id", "", "Session id (see GET /api/sessions)")
	out := fs.String("out", ".", "Output directory")
	verify := fs.Bool("verify", false, "Parse the written file back and report its events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fs.Usage()
		return errors.New("id is required")
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, flags.configPath)
	if err != nil {
		return err
	}
	defer a.close()

	day, sess, err := a.catalog.Lookup(*id)
	if err != nil {
		return err
	}
	payload, filename, err := a.encoder.Encode(sess, day.Date, a.loc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	path := filepath.Join(*out, filename)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	appLog.Info("calendar written", "path", path, "session", sess.ID, "day", day.Label)

	if *verify {
		events, err := ics.Decode(payload)
		if err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}
		for _, ev := range events {
			fmt.Printf("%s  %s - %s  %s\n", ev.UID, ev.Start.In(a.loc).Format("2006-01-02 15:04"), ev.End.In(a.loc).Format("15:04"), ev.Summary)
		}
	}
	fmt.Println(path)
	return nil
}
