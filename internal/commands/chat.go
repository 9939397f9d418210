package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
)

var (
	chatAskSession   string
	chatAskTables    string
	chatAskWait      int
	chatSessionsJSON bool
	chatHistoryJSON  bool
	chatHistoryLimit int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant about your data",
}

var chatAskCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the assistant a question",
	Long: `Ask the assistant a question about your tables and stream its reply.

Without --session a new chat session is created; pass --table to scope it to
specific tables (falls back to the config's default_table when set).
Transformations the assistant suggests and jobs it spawns
are reported as notices after the reply.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChatAsk,
}

var chatSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	Args:  cobra.NoArgs,
	RunE:  runChatSessions,
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show a session's message history",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatHistory,
}

func init() {
	chatAskCmd.Flags().StringVar(&chatAskSession, "session", "", "Continue an existing session instead of starting one")
	chatAskCmd.Flags().StringVar(&chatAskTables, "table", "", "Comma-separated table IDs to scope a new session to")
	chatAskCmd.Flags().IntVar(&chatAskWait, "wait", 120, "Seconds to wait for the streamed reply")

	chatSessionsCmd.Flags().BoolVar(&chatSessionsJSON, "json", false, "Output JSON")

	chatHistoryCmd.Flags().BoolVar(&chatHistoryJSON, "json", false, "Output JSON")
	chatHistoryCmd.Flags().IntVar(&chatHistoryLimit, "limit", 0, "Maximum messages to fetch")

	chatCmd.AddCommand(chatAskCmd)
	chatCmd.AddCommand(chatSessionsCmd)
	chatCmd.AddCommand(chatHistoryCmd)
}

// sessionTableIDs resolves the tables a new session is scoped to: the
// --table flag wins, then the config's default_table, else unscoped.
func sessionTableIDs(flagValue, defaultTable string) []string {
	if ids := parseTableIDs(flagValue); len(ids) > 0 {
		return ids
	}
	if defaultTable != "" {
		return []string{defaultTable}
	}
	return nil
}

// parseTableIDs splits a comma-separated table ID list, dropping empties.
func parseTableIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func runChatAsk(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	var sseURL string
	var jobIDs []string
	if chatAskSession != "" {
		if chatAskTables != "" {
			return fmt.Errorf("--table only applies when starting a new session")
		}
		resp, err := c.SendChatMessage(ctx, chatAskSession, &client.SendChatMessageRequest{Body: message})
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		sseURL = resp.SSEURL
		jobIDs = resp.JobIDs
	} else {
		resp, err := c.CreateChatSession(ctx, &client.CreateChatSessionRequest{
			TableIDs: sessionTableIDs(chatAskTables, cfg.DefaultTable),
			Message:  message,
		})
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		sseURL = resp.SSEURL
		jobIDs = resp.JobIDs
		AddNotice("session %s started - continue with `tdk chat ask --session %s ...`", resp.SessionID, resp.SessionID)
	}
	trackJobs(jobIDs...)

	streamCtx, cancelStream := context.WithTimeout(cmd.Context(), time.Duration(chatAskWait)*time.Second)
	defer cancelStream()

	events, err := client.NewSSE(apiKey()).WithLogger(logger()).Connect(streamCtx, c.ResolveURL(sseURL))
	if err != nil {
		return fmt.Errorf("connecting to reply stream: %w", err)
	}
	return streamReply(streamCtx, events)
}

// streamReply prints assistant output from an SSE stream until the server
// signals completion or the context expires.
func streamReply(ctx context.Context, events <-chan client.SSEEvent) error {
	assistant := color.New(color.FgCyan)
	printedText := false

	for {
		select {
		case <-ctx.Done():
			if printedText {
				fmt.Println()
			}
			return fmt.Errorf("reply stream timed out (increase --wait?)")
		case ev, ok := <-events:
			if !ok {
				// Server closed without "done"; whatever streamed is all we get.
				if printedText {
					fmt.Println()
				}
				return nil
			}
			switch ev.Type {
			case client.EventDelta:
				d, err := ev.DecodeDelta()
				if err != nil {
					log := logger()
					log.Warn().Err(err).Msg("bad delta event, skipping")
					continue
				}
				assistant.Print(d.Text)
				printedText = true
			case client.EventMessage:
				m, err := ev.DecodeMessage()
				if err != nil {
					log := logger()
					log.Warn().Err(err).Msg("bad message event, skipping")
					continue
				}
				// Deltas already streamed the body; fall back when they didn't.
				if !printedText && m.Body != "" {
					assistant.Print(m.Body)
					printedText = true
				}
				for _, id := range m.TransformIDs {
					AddNotice("transform %s suggested - review with `tdk transforms show %s`", id, id)
				}
				trackJobs(m.JobIDs...)
			case client.EventJob:
				j, err := ev.DecodeJob()
				if err != nil {
					log := logger()
					log.Warn().Err(err).Msg("bad job event, skipping")
					continue
				}
				trackJobs(j.JobID)
				if j.Status == client.JobFailed {
					AddNotice("job %s failed - details with `tdk jobs list --ids %s`", j.JobID, j.JobID)
				}
			case client.EventDone:
				if printedText {
					fmt.Println()
				}
				return nil
			}
		}
	}
}

func runChatSessions(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	resp, err := c.ListChatSessions(ctx, &client.ListChatSessionsRequest{})
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if chatSessionsJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if len(resp.Sessions) == 0 {
		fmt.Println("No chat sessions. Start one with `tdk chat ask \"...\"`.")
		return nil
	}
	for _, s := range resp.Sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s  %-40s %d message(s)", s.SessionID, title, s.MessageCount)
		if ago := formatTimeAgo(s.UpdatedAt); ago != "" {
			line += "  " + ago
		}
		fmt.Println(line)
	}
	return nil
}

func runChatHistory(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	var req *client.GetChatMessagesRequest
	if chatHistoryLimit > 0 {
		req = &client.GetChatMessagesRequest{Limit: chatHistoryLimit}
	}
	resp, err := c.GetChatMessages(ctx, args[0], req)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	if chatHistoryJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	for _, m := range resp.Messages {
		fmt.Println(formatChatMessage(m))
	}
	return nil
}

// formatChatMessage renders one history entry with a role marker and any
// attached transform references.
func formatChatMessage(m client.ChatMessage) string {
	role := "you"
	if m.Role == "assistant" {
		role = "assistant"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", role, m.Body)
	for _, id := range m.TransformIDs {
		fmt.Fprintf(&b, "\n    transform: %s", id)
	}
	return b.String()
}
