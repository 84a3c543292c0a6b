// Package main provides the CLI entrypoint for beacon.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/playbeacon/beacon/internal/config"
	"github.com/playbeacon/beacon/internal/dispatch"
	"github.com/playbeacon/beacon/internal/model"
	"github.com/playbeacon/beacon/internal/report"
	"github.com/playbeacon/beacon/internal/reportui"
	"github.com/playbeacon/beacon/internal/session"
	"github.com/playbeacon/beacon/internal/store"
)

const (
	defaultGameID        = "puzzle"
	defaultSessionName   = "session"
	defaultSendTimeoutMs = 3000
)

var (
	ingestGameID      string
	ingestSessionName string
	ingestDryRun      bool

	deliveryParentOrigin  string
	deliveryBridgeURL     string
	deliveryQueuePath     string
	deliverySendTimeoutMs int

	showFile string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "beacon",
		Short:         "Puzzle game telemetry aggregator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newFlushCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addDeliveryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&deliveryParentOrigin, "parent-origin", "", "parent origin to post reports to")
	cmd.Flags().StringVar(&deliveryBridgeURL, "bridge-url", "", "websocket bridge URL")
	cmd.Flags().StringVar(&deliveryQueuePath, "queue", "", "pending-report database path")
	cmd.Flags().IntVar(&deliverySendTimeoutMs, "send-timeout-ms", defaultSendTimeoutMs, "per-channel send timeout")
}

// delivery is the resolved flag/env/file configuration for dispatching.
type delivery struct {
	ParentOrigin string
	BridgeURL    string
	QueuePath    string
	SendTimeout  time.Duration
	FlushDelay   time.Duration
}

func resolveDelivery(cmd *cobra.Command) (delivery, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return delivery{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.ParseEnv()
	if err != nil {
		return delivery{}, err
	}

	deliveryQueuePathDefault := config.DefaultQueuePath()
	if deliveryQueuePath == "" {
		deliveryQueuePath = deliveryQueuePathDefault
	}
	applyStringConfig(cmd, "parent-origin", &deliveryParentOrigin, fileCfg.Report.ParentOrigin)
	applyStringConfig(cmd, "bridge-url", &deliveryBridgeURL, fileCfg.Report.BridgeURL)
	applyStringConfig(cmd, "queue", &deliveryQueuePath, fileCfg.Report.QueuePath)
	applyIntConfig(cmd, "send-timeout-ms", &deliverySendTimeoutMs, fileCfg.Report.SendTimeoutMs)
	applyEnvString(cmd, "parent-origin", &deliveryParentOrigin, envCfg.ParentOrigin)
	applyEnvString(cmd, "bridge-url", &deliveryBridgeURL, envCfg.BridgeURL)
	applyEnvString(cmd, "queue", &deliveryQueuePath, envCfg.QueuePath)

	if deliverySendTimeoutMs <= 0 {
		return delivery{}, fmt.Errorf("--send-timeout-ms must be > 0")
	}
	// One-shot processes exit before a delayed retry could fire, so the
	// post-submit flush is off unless the config asks for it.
	flushDelay := -1 * time.Millisecond
	if fileCfg.Report.FlushDelayMs != nil && *fileCfg.Report.FlushDelayMs > 0 {
		flushDelay = time.Duration(*fileCfg.Report.FlushDelayMs) * time.Millisecond
	}
	return delivery{
		ParentOrigin: deliveryParentOrigin,
		BridgeURL:    deliveryBridgeURL,
		QueuePath:    deliveryQueuePath,
		SendTimeout:  time.Duration(deliverySendTimeoutMs) * time.Millisecond,
		FlushDelay:   flushDelay,
	}, nil
}

func buildDispatcher(d delivery, st *store.Store) *dispatch.Dispatcher {
	var channels []dispatch.Channel
	if d.BridgeURL != "" {
		channels = append(channels, dispatch.NewBridgeChannel(d.BridgeURL))
	}
	channels = append(channels, dispatch.NewParentChannel(d.ParentOrigin))
	return dispatch.New(dispatch.Options{
		Channels:    channels,
		Fallback:    &dispatch.ConsoleChannel{},
		Store:       st,
		SendTimeout: d.SendTimeout,
		FlushDelay:  d.FlushDelay,
	})
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <events.jsonl>",
		Short: "Replay an attempt event log and submit the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestCmd,
	}
	cmd.Flags().StringVar(&ingestGameID, "game", defaultGameID, "game identifier")
	cmd.Flags().StringVar(&ingestSessionName, "name", defaultSessionName, "session display name")
	cmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "print the payload instead of delivering it")
	addDeliveryFlags(cmd)
	return cmd
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "game", &ingestGameID, fileCfg.Report.GameID)
	applyStringConfig(cmd, "name", &ingestSessionName, fileCfg.Report.SessionName)

	events, err := readEvents(args[0])
	if err != nil {
		return err
	}

	recorder := session.New(slog.Default())
	recorder.Initialize(ingestGameID, ingestSessionName)
	for _, evt := range events {
		switch evt.Type {
		case "start":
			recorder.StartAttempt(evt.LevelID)
		case "end":
			recorder.EndAttempt(evt.LevelID, evt.Successful, evt.ElapsedMs, evt.Reward)
		case "task":
			recorder.AttachSubEvent(evt.LevelID, evt.TaskID, evt.Label, evt.Expected, evt.Actual, evt.ElapsedMs, evt.Reward)
		case "metric":
			recorder.AddRawMetric(evt.Key, evt.Value)
		default:
			logErrf("skipping unknown event type %q\n", evt.Type)
		}
	}
	snap := recorder.Snapshot()

	if ingestDryRun {
		payload := report.Build(snap, time.Now())
		return printPayload(cmd.OutOrStdout(), payload)
	}

	d, err := resolveDelivery(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(d.QueuePath)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close queue: %v\n", cerr)
		}
	}()

	dispatcher := buildDispatcher(d, st)
	payload := dispatcher.Submit(cmd.Context(), snap)
	queued, err := st.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count queue: %w", err)
	}
	logErrf("submitted report for session %s (%d pending)\n", payload.SessionID, queued)
	return nil
}

func readEvents(path string) ([]model.Event, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil {
				// Best-effort close of a read-only file.
				_ = cerr
			}
		}()
		r = file
	}

	var events []model.Event
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var evt model.Event
		if err := json.Unmarshal([]byte(text), &evt); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", line, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}

func newFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Retry delivery of queued reports",
		Args:  cobra.NoArgs,
		RunE:  runFlushCmd,
	}
	addDeliveryFlags(cmd)
	return cmd
}

func runFlushCmd(cmd *cobra.Command, _ []string) error {
	d, err := resolveDelivery(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(d.QueuePath)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close queue: %v\n", cerr)
		}
	}()

	before, err := st.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count queue: %w", err)
	}
	dispatcher := buildDispatcher(d, st)
	dispatcher.HandleReconnect(cmd.Context())
	logErrf("flushed %d pending report(s)\n", before)
	return nil
}

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued reports",
		Args:  cobra.NoArgs,
		RunE:  runQueueCmd,
	}
	cmd.Flags().StringVar(&deliveryQueuePath, "queue", "", "pending-report database path")
	return cmd
}

func runQueueCmd(cmd *cobra.Command, _ []string) error {
	st, err := openQueue(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close queue: %v\n", cerr)
		}
	}()

	pending, err := st.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}
	if len(pending) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
		return err
	}
	headers := []string{"ID", "Queued", "Game", "Session", "XP"}
	rows := make([][]string, 0, len(pending))
	for _, entry := range pending {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.EnqueuedAt.Local().Format("2006-01-02 15:04:05"),
			entry.Payload.GameID,
			entry.Payload.SessionID,
			strconv.FormatInt(entry.Payload.RewardEarnedTotal, 10),
		})
	}
	rightAlign := map[int]bool{0: true, 4: true}
	width := terminalWidth(os.Stdout)
	for _, line := range report.FormatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), truncateLine(line, width)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render the newest queued report, or a payload file",
		Args:  cobra.NoArgs,
		RunE:  runShowCmd,
	}
	cmd.Flags().StringVar(&showFile, "file", "", "payload JSON file ('-' for stdin)")
	cmd.Flags().StringVar(&deliveryQueuePath, "queue", "", "pending-report database path")
	return cmd
}

func runShowCmd(cmd *cobra.Command, _ []string) error {
	payload, err := loadShownPayload(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.RenderSummary(out, payload); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := report.RenderLevelTable(out, payload); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := report.RenderAttempts(out, payload); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func loadShownPayload(cmd *cobra.Command) (report.Payload, error) {
	if showFile != "" {
		var data []byte
		var err error
		if showFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(showFile)
		}
		if err != nil {
			return report.Payload{}, fmt.Errorf("failed to read payload: %w", err)
		}
		var payload report.Payload
		if err := json.Unmarshal(data, &payload); err != nil {
			return report.Payload{}, fmt.Errorf("failed to parse payload: %w", err)
		}
		return payload, nil
	}

	st, err := openQueue(cmd)
	if err != nil {
		return report.Payload{}, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close queue: %v\n", cerr)
		}
	}()
	pending, err := st.List(cmd.Context())
	if err != nil {
		return report.Payload{}, fmt.Errorf("failed to list queue: %w", err)
	}
	if len(pending) == 0 {
		return report.Payload{}, fmt.Errorf("queue is empty and no --file given")
	}
	return pending[len(pending)-1].Payload, nil
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse queued reports interactively",
		Args:  cobra.NoArgs,
		RunE:  runViewCmd,
	}
	cmd.Flags().StringVar(&deliveryQueuePath, "queue", "", "pending-report database path")
	return cmd
}

func runViewCmd(cmd *cobra.Command, _ []string) error {
	st, err := openQueue(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close queue: %v\n", cerr)
		}
	}()

	viewer := reportui.NewModel(st)
	program := tea.NewProgram(viewer, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run report viewer: %w", err)
	}
	return nil
}

func openQueue(cmd *cobra.Command) (*store.Store, error) {
	path := deliveryQueuePath
	if path == "" {
		path = config.DefaultQueuePath()
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}
	applyStringConfig(cmd, "queue", &path, fileCfg.Report.QueuePath)
	applyEnvString(cmd, "queue", &path, envCfg.QueuePath)
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	return st, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func printPayload(w io.Writer, p report.Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func terminalWidth(file *os.File) int {
	if !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

func truncateLine(line string, width int) string {
	if width <= 0 {
		return line
	}
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	return string(runes[:width])
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyEnvString(cmd *cobra.Command, name string, target *string, value string) {
	if value == "" {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# beacon configuration
# Uncomment a value to enable it. CLI flags override config values;
# BEACON_* environment variables override the file.

[report]
# game-id = %q           # Game identifier
# session-name = %q      # Session display name
# parent-origin = ""     # Parent origin to post reports to
# bridge-url = ""        # Websocket bridge URL
# queue-path = ""        # Pending-report database path
# send-timeout-ms = %d   # Per-channel send timeout
# flush-delay-ms = 2000  # Delay before the post-submit retry
`,
		defaultGameID,
		defaultSessionName,
		defaultSendTimeoutMs,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
