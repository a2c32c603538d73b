package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"reqreplay/internal/session"
	"reqreplay/pkg/model"
)

var entrySubcommands = []string{"toggle", "delete", "solo", "enable-all", "disable-all", "set", "variant", "help"}

func (a *app) parseEntry(args []string) error {
	if len(args) < 1 {
		printEntryUsage()
		return errors.New("subcommand required")
	}

	switch args[0] {
	case "toggle":
		return a.entryIndexCommand("entry toggle", args[1:], func(id model.RecordingID, i int) session.Command {
			return session.ToggleEntry{ID: id, Index: i}
		})
	case "delete":
		return a.entryIndexCommand("entry delete", args[1:], func(id model.RecordingID, i int) session.Command {
			return session.DeleteEntry{ID: id, Index: i}
		})
	case "solo":
		return a.entryIndexCommand("entry solo", args[1:], func(id model.RecordingID, i int) session.Command {
			return session.SoloEntry{ID: id, Index: i}
		})
	case "enable-all", "disable-all":
		fs := newFlagSet("entry "+args[0], "Usage: reqreplay entry "+args[0]+" <recording_id>\n")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := requireArgs(fs, 1, "recording_id"); err != nil {
			return err
		}
		id := model.RecordingID(fs.Arg(0))
		return a.dispatchExisting(id, session.ToggleAllEntries{ID: id, Disabled: args[0] == "disable-all"})
	case "set":
		return a.parseEntrySet(args[1:])
	case "variant":
		return a.parseVariant(args[1:])
	case "help", "--help", "-h":
		printEntryUsage()
		return nil
	default:
		return unknownSubcommandError("entry", args[0], entrySubcommands)
	}
}

func (a *app) entryIndexCommand(name string, args []string, build func(model.RecordingID, int) session.Command) error {
	fs := newFlagSet(name, "Usage: reqreplay "+name+" <recording_id> <index>\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "recording_id and index"); err != nil {
		return err
	}
	idx, err := parseIndex(fs.Arg(1))
	if err != nil {
		return err
	}
	id := model.RecordingID(fs.Arg(0))
	return a.dispatchExisting(id, build(id, idx))
}

func (a *app) parseEntrySet(args []string) error {
	fs := newFlagSet("entry set", "Usage: reqreplay entry set <recording_id> <index> [options]\n\nUpdate fields of a recorded entry.\n")
	var url, method, bodyFile string
	var status int
	fs.StringVar(&url, "url", "", "request URL pattern")
	fs.StringVar(&method, "method", "", "request method")
	fs.IntVar(&status, "status", 0, "response status")
	fs.StringVar(&bodyFile, "body-file", "", "read response body from file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "recording_id and index"); err != nil {
		return err
	}
	idx, err := parseIndex(fs.Arg(1))
	if err != nil {
		return err
	}

	updates := make(map[string]any)
	if url != "" {
		updates["url"] = url
	}
	if method != "" {
		updates["method"] = method
	}
	if status > 0 {
		updates["status"] = status
	}
	if bodyFile != "" {
		body, err := os.ReadFile(bodyFile)
		if err != nil {
			return err
		}
		updates["body"] = string(body)
	}
	if len(updates) == 0 {
		fs.Usage()
		return errors.New("nothing to update")
	}
	id := model.RecordingID(fs.Arg(0))
	return a.dispatchExisting(id, session.UpdateEntry{ID: id, Index: idx, Updates: updates})
}

var variantSubcommands = []string{"add", "use", "rename", "delete"}

func (a *app) parseVariant(args []string) error {
	if len(args) < 1 {
		printEntryUsage()
		return errors.New("variant subcommand required")
	}
	sub := args[0]
	fs := newFlagSet("entry variant "+sub, "Usage: reqreplay entry variant "+sub+" <recording_id> <index> [variant] [options]\n")
	var name, bodyFile string
	if sub == "add" {
		fs.StringVar(&name, "name", "", "variant name")
		fs.StringVar(&bodyFile, "body-file", "", "read variant body from file")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "recording_id and index"); err != nil {
		return err
	}
	id := model.RecordingID(fs.Arg(0))
	idx, err := parseIndex(fs.Arg(1))
	if err != nil {
		return err
	}

	switch sub {
	case "add":
		if bodyFile == "" {
			return errors.New("--body-file required")
		}
		body, err := os.ReadFile(bodyFile)
		if err != nil {
			return err
		}
		return a.dispatchExisting(id, session.AddVariant{ID: id, Index: idx, Name: name, Body: string(body)})
	case "use", "delete", "rename":
		if err := requireArgs(fs, 3, "variant index"); err != nil {
			return err
		}
		v, err := strconv.Atoi(fs.Arg(2))
		if err != nil {
			return fmt.Errorf("invalid variant index: %s", fs.Arg(2))
		}
		switch sub {
		case "use":
			return a.dispatchExisting(id, session.SetActiveVariant{ID: id, Index: idx, Variant: v})
		case "delete":
			return a.dispatchExisting(id, session.DeleteVariant{ID: id, Index: idx, Variant: v})
		}
		if err := requireArgs(fs, 4, "variant name"); err != nil {
			return err
		}
		return a.dispatchExisting(id, session.RenameVariant{ID: id, Index: idx, Variant: v, Name: fs.Arg(3)})
	default:
		return unknownSubcommandError("entry variant", sub, variantSubcommands)
	}
}

// parseCopy 复制条目到另一个录制
func (a *app) parseCopy(args []string) error {
	fs := newFlagSet("copy", "Usage: reqreplay copy <source_id> <target_id> <index>...\n\nCopy entries into another recording.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 3, "source_id, target_id and index"); err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	src, ok := svc.Recording(model.RecordingID(fs.Arg(0)))
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, fs.Arg(0))
	}
	var picked []model.Entry
	for _, s := range fs.Args()[2:] {
		i, err := parseIndex(s)
		if err != nil {
			return err
		}
		if i >= len(src.Entries) {
			return fmt.Errorf("entry index out of range: %d", i)
		}
		picked = append(picked, src.Entries[i])
	}
	dst := model.RecordingID(fs.Arg(1))
	return a.dispatchExisting(dst, session.CopyEntries{Target: dst, Entries: picked})
}

func printEntryUsage() {
	fmt.Fprint(os.Stderr, `Usage: reqreplay entry <command> <recording_id> <index> [options]

Commands:
  toggle                       Enable or disable an entry
  delete                       Delete an entry
  solo                         Keep only this entry enabled (again to enable all)
  enable-all / disable-all     Enable or disable every entry of a recording
  set                          Update url, method, status or body of an entry
  variant add                  Add a body variant (--name, --body-file)
  variant use <v>              Make variant v the active body
  variant rename <v> <name>    Rename variant v
  variant delete <v>           Delete variant v
`)
}
