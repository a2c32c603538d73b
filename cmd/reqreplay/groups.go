package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"reqreplay/internal/session"
	"reqreplay/pkg/model"
)

var groupSubcommands = []string{"add", "update", "list", "delete", "assign", "help"}

func (a *app) parseGroup(args []string) error {
	if len(args) < 1 {
		printGroupUsage()
		return errors.New("subcommand required")
	}

	switch args[0] {
	case "add", "update":
		return a.parseGroupSave(args[0], args[1:])
	case "list":
		return a.groupList(args[1:])
	case "delete":
		fs := newFlagSet("group delete", "Usage: reqreplay group delete <group_id>\n")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := requireArgs(fs, 1, "group_id"); err != nil {
			return err
		}
		return a.dispatch(session.DeleteOriginGroup{ID: model.OriginGroupID(fs.Arg(0))})
	case "assign":
		fs := newFlagSet("group assign", "Usage: reqreplay group assign <recording_id> [group_id]...\n\nSet the origin groups of a recording. No group ids clears them.\n")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := requireArgs(fs, 1, "recording_id"); err != nil {
			return err
		}
		id := model.RecordingID(fs.Arg(0))
		groups := make([]model.OriginGroupID, 0, fs.NArg()-1)
		for _, g := range fs.Args()[1:] {
			groups = append(groups, model.OriginGroupID(g))
		}
		return a.dispatchExisting(id, session.SetRecordingOriginGroups{ID: id, Groups: groups})
	case "help", "--help", "-h":
		printGroupUsage()
		return nil
	default:
		return unknownSubcommandError("group", args[0], groupSubcommands)
	}
}

func (a *app) parseGroupSave(sub string, args []string) error {
	usage := "Usage: reqreplay group add --name <name> --map <origin,origin>...\n"
	if sub == "update" {
		usage = "Usage: reqreplay group update <group_id> --name <name> --map <origin,origin>...\n"
	}
	fs := newFlagSet("group "+sub, usage)
	var name string
	var maps []string
	fs.StringVar(&name, "name", "", "group name")
	fs.StringArrayVar(&maps, "map", nil, "comma separated origins treated as equivalent (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mappings := parseMappings(maps)
	if sub == "add" {
		svc, err := a.service(context.Background())
		if err != nil {
			return err
		}
		res := svc.Dispatch(context.Background(), session.AddOriginGroup{Name: name, Mappings: mappings})
		if res.Err != nil {
			return res.Err
		}
		fmt.Printf("created group %s\n", res.GroupID)
		return nil
	}

	if err := requireArgs(fs, 1, "group_id"); err != nil {
		return err
	}
	return a.dispatch(session.UpdateOriginGroup{ID: model.OriginGroupID(fs.Arg(0)), Name: name, Mappings: mappings})
}

// parseMappings 每个 --map 值是一组等价源
func parseMappings(values []string) [][]string {
	out := make([][]string, 0, len(values))
	for _, v := range values {
		var set []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				set = append(set, o)
			}
		}
		if len(set) > 0 {
			out = append(out, set)
		}
	}
	return out
}

func (a *app) groupList(args []string) error {
	fs := newFlagSet("group list", "Usage: reqreplay group list\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}

	groups := svc.Summary().OriginGroups
	if len(groups) == 0 {
		fmt.Println("No origin groups.")
		return nil
	}
	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Mappings"})
	for _, g := range groups {
		sets := make([]string, len(g.Mappings))
		for i, m := range g.Mappings {
			sets[i] = strings.Join(m, " = ")
		}
		t.AppendRow(table.Row{g.ID, g.Name, strings.Join(sets, "\n")})
	}
	t.Render()
	return nil
}

var ignoreSubcommands = []string{"add", "remove", "list", "help"}

func (a *app) parseIgnore(args []string) error {
	if len(args) < 1 {
		printIgnoreUsage()
		return errors.New("subcommand required")
	}
	sub := args[0]
	switch sub {
	case "add", "remove", "list":
	case "help", "--help", "-h":
		printIgnoreUsage()
		return nil
	default:
		return unknownSubcommandError("ignore", sub, ignoreSubcommands)
	}

	fs := newFlagSet("ignore "+sub, "Usage: reqreplay ignore "+sub+" [pattern] [options]\n")
	var recording string
	fs.StringVar(&recording, "recording", "", "apply to one recording instead of the global list")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	id := model.RecordingID(recording)

	if sub == "list" {
		return a.ignoreList(id)
	}
	if err := requireArgs(fs, 1, "pattern"); err != nil {
		return err
	}
	pattern := fs.Arg(0)
	switch {
	case sub == "add" && id == "":
		return a.dispatch(session.AddIgnore{Pattern: pattern})
	case sub == "add":
		return a.dispatchExisting(id, session.AddRecordingIgnore{ID: id, Pattern: pattern})
	case id == "":
		return a.dispatch(session.RemoveIgnore{Pattern: pattern})
	default:
		return a.dispatchExisting(id, session.RemoveRecordingIgnore{ID: id, Pattern: pattern})
	}
}

func (a *app) ignoreList(id model.RecordingID) error {
	svc, err := a.service(context.Background())
	if err != nil {
		return err
	}
	patterns := svc.Summary().IgnorePatterns
	if id != "" {
		rec, ok := svc.Recording(id)
		if !ok {
			return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, id)
		}
		patterns = rec.IgnorePatterns
	}
	for _, p := range patterns {
		fmt.Println(p)
	}
	return nil
}

// dispatch 执行不依赖录制存在性的命令
func (a *app) dispatch(cmd session.Command) error {
	ctx := context.Background()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	return svc.Dispatch(ctx, cmd).Err
}

func printGroupUsage() {
	fmt.Fprint(os.Stderr, `Usage: reqreplay group <command> [options]

Origin groups let a recording made on one host replay on another.

Commands:
  add --name <n> --map <a,b>...            Create a group
  update <group_id> --name <n> --map ...   Replace name and mappings of a group
  list                                     List groups
  delete <group_id>                        Delete a group
  assign <recording_id> [group_id]...      Set the groups used by a recording
`)
}

func printIgnoreUsage() {
	fmt.Fprint(os.Stderr, `Usage: reqreplay ignore <command> [pattern] [--recording id]

Requests whose URL contains a pattern, or matches a /regex/flags pattern,
are never recorded.
With --recording the pattern only applies when recording into that recording.

Commands:
  add <pattern>       Add a pattern
  remove <pattern>    Remove a pattern
  list                List patterns
`)
}
