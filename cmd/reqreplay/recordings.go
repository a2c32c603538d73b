package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"reqreplay/internal/session"
	"reqreplay/pkg/model"
)

// newFlagSet 创建子命令选项集，usage 为帮助文本头部
func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetInterspersed(true)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		if fs.HasFlags() {
			fmt.Fprint(os.Stderr, "\nOptions:\n")
			fs.PrintDefaults()
		}
	}
	return fs
}

// requireArgs 校验位置参数个数
func requireArgs(fs *pflag.FlagSet, n int, what string) error {
	if fs.NArg() < n {
		fs.Usage()
		return fmt.Errorf("%s required", what)
	}
	return nil
}

func (a *app) parseList(args []string) error {
	fs := newFlagSet("list", "Usage: reqreplay list\n\nList saved recordings.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}

	sum := svc.Summary()
	if len(sum.Recordings) == 0 {
		fmt.Println("No recordings.")
		return nil
	}
	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Entries", "Created", "Source", "Replaying"})
	for _, r := range sum.Recordings {
		target := string(sum.ActiveReplays[r.ID])
		t.AppendRow(table.Row{r.ID, r.Name, r.Count, formatMillis(r.Timestamp), truncate(r.SourceURL, 48), target})
	}
	t.Render()
	return nil
}

func (a *app) parseShow(args []string) error {
	fs := newFlagSet("show", "Usage: reqreplay show <recording_id>\n\nShow the entries of a recording.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "recording_id"); err != nil {
		return err
	}
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}

	id := model.RecordingID(fs.Arg(0))
	rec, ok := svc.Recording(id)
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, id)
	}
	fmt.Printf("%s (%s)\n", rec.Name, rec.ID)
	if len(rec.IgnorePatterns) > 0 {
		fmt.Printf("ignore: %v\n", rec.IgnorePatterns)
	}

	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"#", "Method", "URL", "Status", "Kind", "Variant", "Disabled"})
	for i, e := range rec.Entries {
		variant := "-"
		if e.ActiveVariant != nil && *e.ActiveVariant < len(e.BodyVariants) {
			variant = e.BodyVariants[*e.ActiveVariant].Name
		}
		disabled := ""
		if e.Disabled {
			disabled = "yes"
		}
		t.AppendRow(table.Row{i, e.Method, truncate(e.URL, 80), e.Status, e.Kind, variant, disabled})
	}
	t.Render()
	return nil
}

func (a *app) parseRename(args []string) error {
	fs := newFlagSet("rename", "Usage: reqreplay rename <recording_id> <name>\n\nRename a recording.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "recording_id and name"); err != nil {
		return err
	}
	return a.dispatchExisting(model.RecordingID(fs.Arg(0)), session.RenameRecording{
		ID:   model.RecordingID(fs.Arg(0)),
		Name: fs.Arg(1),
	})
}

func (a *app) parseDelete(args []string) error {
	fs := newFlagSet("delete", "Usage: reqreplay delete <recording_id>\n\nDelete a recording.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "recording_id"); err != nil {
		return err
	}
	id := model.RecordingID(fs.Arg(0))
	return a.dispatchExisting(id, session.DeleteRecording{ID: id})
}

func (a *app) parseMerge(args []string) error {
	fs := newFlagSet("merge", "Usage: reqreplay merge <source_id> <target_id>\n\nAppend the entries of source to target and delete source.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "source_id and target_id"); err != nil {
		return err
	}
	src, dst := model.RecordingID(fs.Arg(0)), model.RecordingID(fs.Arg(1))
	if src == dst {
		return errors.New("source and target must differ")
	}
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}
	if _, ok := svc.Recording(src); !ok {
		return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, src)
	}
	return a.dispatchExisting(dst, session.MergeRecording{Source: src, Target: dst})
}

func (a *app) parseDedupe(args []string) error {
	fs := newFlagSet("dedupe", "Usage: reqreplay dedupe <recording_id>\n\nKeep only the first entry per URL.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "recording_id"); err != nil {
		return err
	}
	id := model.RecordingID(fs.Arg(0))
	if err := a.dispatchExisting(id, session.DedupeEntries{ID: id}); err != nil {
		return err
	}
	rec, _ := a.svc.Recording(id)
	fmt.Printf("%d entries left\n", len(rec.Entries))
	return nil
}

func (a *app) parseExport(args []string) error {
	fs := newFlagSet("export", "Usage: reqreplay export <recording_id> [options]\n\nExport a recording as HAR.\n")
	var out string
	fs.StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "recording_id"); err != nil {
		return err
	}
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}

	data, err := svc.ExportHAR(model.RecordingID(fs.Arg(0)))
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "exported to %s\n", out)
	return nil
}

func (a *app) parseImport(args []string) error {
	fs := newFlagSet("import", "Usage: reqreplay import <file.har> [options]\n\nImport a HAR file as a new recording.\n")
	var name string
	fs.StringVar(&name, "name", "", "recording name (default: file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "file"); err != nil {
		return err
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(path)
	}
	ctx := context.Background()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	id, err := svc.ImportHAR(ctx, data, name)
	if err != nil {
		return err
	}
	rec, _ := svc.Recording(id)
	fmt.Printf("imported %s (%d entries)\n", id, len(rec.Entries))
	return nil
}

// dispatchExisting 确认录制存在后执行命令
func (a *app) dispatchExisting(id model.RecordingID, cmd session.Command) error {
	ctx := context.Background()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	if _, ok := svc.Recording(id); !ok {
		return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, id)
	}
	return svc.Dispatch(ctx, cmd).Err
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid entry index: %s", s)
	}
	return i, nil
}
