package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"

	"reqreplay/internal/session"
	"reqreplay/pkg/api"
	"reqreplay/pkg/model"
)

func (a *app) parseTargets(args []string) error {
	fs := newFlagSet("targets", "Usage: reqreplay targets\n\nList page targets of the browser at devtools.url.\n")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	targets, err := svc.ListTargets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("No page targets.")
		return nil
	}
	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "URL"})
	for _, tg := range targets {
		t.AppendRow(table.Row{tg.ID, truncate(tg.Title, 40), truncate(tg.URL, 80)})
	}
	t.Render()
	return nil
}

func (a *app) parseRecord(args []string) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	fs := newFlagSet("record", "Usage: reqreplay record --target <id> [options]\n\nRecord responses of a target until interrupted (Ctrl+C).\n")
	var target, filters, into, name string
	fs.StringVar(&target, "target", "", "page target id (see 'reqreplay targets')")
	fs.StringVar(&filters, "filters", joinKinds(cfg.Record.Filters), "comma separated resource kinds to record")
	fs.StringVar(&into, "into", "", "append to an existing recording instead of creating one")
	fs.StringVar(&name, "name", "", "create the recording up front with this name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if target == "" {
		fs.Usage()
		return errors.New("--target required")
	}
	if into != "" && name != "" {
		return errors.New("--into and --name are mutually exclusive")
	}
	kinds, err := parseKinds(filters)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	info, err := findTarget(ctx, svc, model.TargetID(target))
	if err != nil {
		return err
	}
	intoID := model.RecordingID(into)
	if intoID != "" {
		if _, ok := svc.Recording(intoID); !ok {
			return fmt.Errorf("%w: %s", session.ErrRecordingNotFound, intoID)
		}
	}

	res := startRecording(ctx, svc, kinds, info, intoID, name)
	if res.Err != nil {
		return res.Err
	}
	if err := a.follow(ctx, svc, info.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "recording %s (%s), Ctrl+C to stop\n", info.ID, filters)
	watchEvents(ctx, svc)

	var stopCmd session.Command = session.StopRecord{}
	if intoID != "" {
		stopCmd = session.StopRecordInto{ID: intoID}
	}
	res = svc.Dispatch(context.Background(), stopCmd)
	if res.Err != nil {
		return res.Err
	}
	if res.RecordingID == "" {
		fmt.Println("nothing recorded")
		return nil
	}
	rec, _ := svc.Recording(res.RecordingID)
	fmt.Printf("saved %s (%d entries)\n", res.RecordingID, len(rec.Entries))
	return nil
}

// startRecording 指定名称时先创建空录制再录制到其中，否则录制到缓冲区或 into
func startRecording(ctx context.Context, svc api.Service, kinds []model.Kind, info model.TargetInfo, into model.RecordingID, name string) session.Result {
	if name == "" {
		return svc.Dispatch(ctx, session.StartRecord{Filters: kinds, Tab: info.ID, Into: into, SourceURL: info.URL})
	}
	res := svc.Dispatch(ctx, session.CreateAndRecord{Filters: kinds, Tab: info.ID, SourceURL: info.URL})
	if res.Err != nil {
		return res
	}
	if r := svc.Dispatch(ctx, session.RenameRecording{ID: res.RecordingID, Name: name}); r.Err != nil {
		return r
	}
	return res
}

func (a *app) parseReplay(args []string) error {
	fs := newFlagSet("replay", "Usage: reqreplay replay --target <id> <recording_id>...\n\nAnswer matching requests of a target from recordings until interrupted (Ctrl+C).\n")
	var target string
	fs.StringVar(&target, "target", "", "page target id (see 'reqreplay targets')")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if target == "" {
		fs.Usage()
		return errors.New("--target required")
	}
	if err := requireArgs(fs, 1, "recording_id"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	info, err := findTarget(ctx, svc, model.TargetID(target))
	if err != nil {
		return err
	}

	ids := make([]model.RecordingID, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id := model.RecordingID(arg)
		if res := svc.Dispatch(ctx, session.StartReplay{ID: id, Target: info.ID}); res.Err != nil {
			stopReplays(svc, ids)
			return res.Err
		}
		ids = append(ids, id)
	}
	if err := a.follow(ctx, svc, info.ID); err != nil {
		stopReplays(svc, ids)
		return err
	}
	payload := svc.ResolveModeFor(info.ID)
	fmt.Fprintf(os.Stderr, "replaying %d entries on %s, Ctrl+C to stop\n", len(payload.Entries), info.ID)
	watchEvents(ctx, svc)

	stopReplays(svc, ids)
	fmt.Printf("%d requests replayed\n", svc.Summary().ReplayHitCount)
	return nil
}

func stopReplays(svc api.Service, ids []model.RecordingID) {
	for _, id := range ids {
		svc.Dispatch(context.Background(), session.StopReplay{ID: id})
	}
}

func (a *app) parseSniff(args []string) error {
	fs := newFlagSet("sniff", "Usage: reqreplay sniff --target <id>\n\nList requests of a target observed until interrupted (Ctrl+C).\n")
	var target string
	fs.StringVar(&target, "target", "", "page target id (see 'reqreplay targets')")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if target == "" {
		fs.Usage()
		return errors.New("--target required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	info, err := findTarget(ctx, svc, model.TargetID(target))
	if err != nil {
		return err
	}

	svc.Dispatch(ctx, session.ToggleSniff{Target: info.ID})
	if err := svc.AttachTarget(ctx, info.ID); err != nil {
		svc.Dispatch(context.Background(), session.ToggleSniff{Target: info.ID})
		return err
	}
	fmt.Fprintf(os.Stderr, "sniffing %s, Ctrl+C to stop\n", info.ID)
	<-ctx.Done()

	requests := svc.Summary().Requests
	svc.Dispatch(context.Background(), session.ToggleSniff{Target: info.ID})

	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"Time", "Method", "Type", "Status", "URL"})
	for _, r := range requests {
		status := "-"
		if r.Status > 0 {
			status = fmt.Sprint(r.Status)
		}
		t.AppendRow(table.Row{formatMillis(r.Time), r.Method, r.Type, status, truncate(r.URL, 80)})
	}
	t.Render()
	return nil
}

// follow 跟随模式变化，并立即附加目标
func (a *app) follow(ctx context.Context, svc api.Service, target model.TargetID) error {
	go svc.Run(ctx)
	return svc.AttachTarget(ctx, target)
}

func findTarget(ctx context.Context, svc api.Service, id model.TargetID) (model.TargetInfo, error) {
	targets, err := svc.ListTargets(ctx)
	if err != nil {
		return model.TargetInfo{}, err
	}
	for _, t := range targets {
		if t.ID == id {
			return t, nil
		}
	}
	return model.TargetInfo{}, fmt.Errorf("page target not found: %s", id)
}

// watchEvents 打印回放与录制事件直到 ctx 结束
func watchEvents(ctx context.Context, svc api.Service) {
	events := svc.TrafficEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			printEvent(os.Stdout, e)
		}
	}
}
