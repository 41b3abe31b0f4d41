// Package repl runs one conversation as an interactive terminal session.
// Each line of input is one turn; table replies render with tablewriter.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/saleswire/server/internal/agent/model"
	logx "github.com/saleswire/server/pkg/logger"
)

// TurnProcessor is the slice of the dialogue engine the session drives.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conversationID, utterance string) (model.Reply, error)
}

// Session binds one conversation to a terminal. The conversation id is a
// fresh UUID per session, so restarting the binary starts a clean dialogue
// even against a shared Redis store.
type Session struct {
	engine         TurnProcessor
	conversationID string
	in             io.Reader
	out            io.Writer
}

// NewSession builds a session reading stdin and writing stdout.
func NewSession(engine TurnProcessor) *Session {
	return &Session{
		engine:         engine,
		conversationID: uuid.NewString(),
		in:             os.Stdin,
		out:            os.Stdout,
	}
}

// Run loops until EOF, context cancellation or an exit command. Turn
// failures are logged and the engine's apology is shown; the loop keeps
// going.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Sales data assistant ready. Ask away, or type 'exit' to leave.")

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		reply, err := s.engine.ProcessTurn(ctx, s.conversationID, line)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", s.conversationID).Msg("turn failed")
		}
		s.render(reply)
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

func (s *Session) render(reply model.Reply) {
	if !reply.IsTable {
		fmt.Fprintln(s.out, reply.Text)
		return
	}
	RenderTable(s.out, reply.Columns, reply.Rows)
}

// RenderTable writes rows as a bordered terminal table. Values print as
// stored; the narrator formats currency, tables stay exact.
func RenderTable(w io.Writer, columns []string, rows [][]any) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetHeader(columns)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
}

// formatCell renders one value without scientific notation for large
// numbers.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
