package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/console"
	"github.com/BaSui01/debateflow/types"
)

// errPaused 上游失败导致辩论中断
var errPaused = errors.New("debate paused")

// =============================================================================
// 🎬 终端辩论
// =============================================================================

// runOptions 一次终端辩论的参数
type runOptions struct {
	Topic        string
	Participants []debate.Participant
	Config       debate.Config
	TUI          bool
	Icons        bool
	TypingDelay  time.Duration
	// Out 非空时写出文本记录（中断时写出已有部分）
	Out      string
	Detailed bool
	Now      func() time.Time
}

func runDebateCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	topic := fs.String("topic", "", "Debate topic")
	turns := fs.Int("turns", 0, "Turn budget")
	tui := fs.Bool("tui", false, "Animated terminal view with typing indicator")
	icons := fs.Bool("icons", false, "Prefix speakers with role icons")
	out := fs.String("out", "", "Write the transcript to this file")
	detailed := fs.Bool("detailed", false, "Write the detailed transcript format")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if *topic != "" {
		cfg.Debate.Topic = *topic
	}
	if *turns > 0 {
		cfg.Debate.TurnBudget = *turns
	}

	// 终端输出被辩论内容占用，日志改写到 stderr
	logCfg := cfg.Log
	logCfg.OutputPaths = []string{"stderr"}
	logger := initLogger(logCfg)
	defer func() { _ = logger.Sync() }()

	debateCfg, err := buildDebateConfig(cfg.Debate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	participants, err := participantFactory(cfg.Participants)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	gen, _, err := buildGenerator(cfg, logger, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runDebate(ctx, runOptions{
		Topic:        cfg.Debate.Topic,
		Participants: participants(cfg.Debate.Topic),
		Config:       debateCfg,
		TUI:          *tui,
		Icons:        *icons,
		TypingDelay:  cfg.Debate.TypingDelay,
		Out:          *out,
		Detailed:     *detailed,
	}, gen.ForTopic(cfg.Debate.Topic), os.Stdout, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return exitCode(err)
}

// runDebate 跑完一场辩论并收尾。上游失败时返回包装了 errPaused 的错误，
// 已记录的发言仍会写入 opts.Out。
func runDebate(ctx context.Context, opts runOptions, gen debate.Generator, stdout io.Writer, logger *zap.Logger) (debate.State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var printerOpts []console.PrinterOption
	if opts.Icons {
		printerOpts = append(printerOpts, console.WithIcons())
	}
	printer := console.NewPrinter(stdout, opts.Participants, printerOpts...)

	sessOpts := []debate.Option{
		debate.WithConfig(opts.Config),
		debate.WithLogger(logger),
		debate.WithClock(now),
	}
	if !opts.TUI {
		sessOpts = append(sessOpts, debate.WithTurnObserver(printer.PrintTurn))
	}

	sess, err := debate.NewSession(opts.Topic, opts.Participants, sessOpts...)
	if err != nil {
		return debate.State{}, err
	}

	if opts.TUI {
		err = console.Watch(ctx, sess, gen, console.WatchOptions{
			TypingDelay: opts.TypingDelay,
			Output:      stdout,
		})
	} else {
		err = sess.Run(ctx, gen)
		if err == nil {
			_, err = sess.Finalize()
		}
		printer.PrintStop(console.StopReason(sess.State(), err))
	}

	st := sess.State()
	if opts.Out != "" {
		if werr := writeTranscript(opts.Out, st, opts.Detailed, now()); werr != nil {
			return st, errors.Join(err, werr)
		}
		logger.Info("transcript written", zap.String("path", opts.Out), zap.Int("turns", len(st.Turns)))
	}

	if types.IsErrorCode(err, types.ErrUpstreamUnavailable) {
		return st, fmt.Errorf("%w at turn %d: %w", errPaused, len(st.Turns), err)
	}
	return st, err
}

func writeTranscript(path string, st debate.State, detailed bool, at time.Time) error {
	text := debate.PlainTranscript(st.Turns)
	if detailed {
		text = debate.DetailedTranscript(st, at)
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
