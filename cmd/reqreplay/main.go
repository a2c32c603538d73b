// reqreplay 命令行：管理录制并在浏览器目标上录制或回放请求。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"reqreplay/internal/config"
	"reqreplay/internal/logger"
	"reqreplay/pkg/api"
)

const defaultConfigPath = "reqreplay.yaml"

var commands = []string{
	"targets", "list", "show", "rename", "delete", "merge", "dedupe",
	"entry", "copy", "export", "import", "group", "ignore", "record", "replay", "sniff", "help",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	configPath, rest, err := splitGlobalFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(rest) < 1 {
		printRootUsage()
		return 1
	}

	a := &app{configPath: configPath}
	defer a.close()

	switch rest[0] {
	case "targets":
		err = a.parseTargets(rest[1:])
	case "list":
		err = a.parseList(rest[1:])
	case "show":
		err = a.parseShow(rest[1:])
	case "rename":
		err = a.parseRename(rest[1:])
	case "delete":
		err = a.parseDelete(rest[1:])
	case "merge":
		err = a.parseMerge(rest[1:])
	case "dedupe":
		err = a.parseDedupe(rest[1:])
	case "entry":
		err = a.parseEntry(rest[1:])
	case "copy":
		err = a.parseCopy(rest[1:])
	case "export":
		err = a.parseExport(rest[1:])
	case "import":
		err = a.parseImport(rest[1:])
	case "group":
		err = a.parseGroup(rest[1:])
	case "ignore":
		err = a.parseIgnore(rest[1:])
	case "record":
		err = a.parseRecord(rest[1:])
	case "replay":
		err = a.parseReplay(rest[1:])
	case "sniff":
		err = a.parseSniff(rest[1:])
	case "help", "--help", "-h":
		printRootUsage()
		return 0
	default:
		err = unknownCommandError(rest[0], commands)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// splitGlobalFlags 取出命令前的 --config 选项
func splitGlobalFlags(args []string) (string, []string, error) {
	path := defaultConfigPath
	for len(args) > 0 && strings.HasPrefix(args[0], "--config") {
		if v, ok := strings.CutPrefix(args[0], "--config="); ok {
			path = v
			args = args[1:]
			continue
		}
		if args[0] != "--config" {
			break
		}
		if len(args) < 2 {
			return "", nil, errors.New("--config requires a path")
		}
		path = args[1]
		args = args[2:]
	}
	return path, args, nil
}

// app 延迟创建服务，help 等命令不需要打开数据库
type app struct {
	configPath string
	cfg        *config.Config
	svc        api.Service
}

func (a *app) service(ctx context.Context) (api.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	l, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return nil, err
	}
	svc, err := api.NewService(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *app) config() (*config.Config, error) {
	if a.cfg == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, err
		}
		a.cfg = cfg
	}
	return a.cfg, nil
}

func (a *app) close() {
	if a.svc != nil {
		_ = a.svc.Close()
	}
}

func printRootUsage() {
	fmt.Fprint(os.Stderr, `Usage: reqreplay [--config path] <command> [options]

Commands:
  targets    List browser page targets
  list       List recordings
  show       Show entries of a recording
  rename     Rename a recording
  delete     Delete a recording
  merge      Merge one recording into another
  dedupe     Drop duplicate entries of a recording
  entry      Edit entries and body variants of a recording
  copy       Copy entries into another recording
  export     Export a recording as HAR
  import     Import a HAR file as a new recording
  group      Manage origin groups
  ignore     Manage ignore patterns
  record     Record traffic of a target until interrupted
  replay     Replay recordings on a target until interrupted
  sniff      Observe requests of a target until interrupted

Global Options:
  --config <path>    Config file (default: reqreplay.yaml)

Use "reqreplay <command> --help" for specific command usage.
`)
}
