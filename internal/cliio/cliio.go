// Package cliio holds the small terminal I/O helpers shared by commands.
package cliio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/liggitt/tabwriter"
)

// PromptYesNo writes prompt and reads a yes/no response from input.
func PromptYesNo(out io.Writer, in io.Reader, prompt string) (bool, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return false, err
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	choice := strings.ToLower(strings.TrimSpace(line))
	return choice == "y" || choice == "yes", nil
}

// NewTabWriter creates a tabwriter with the report column spacing. With
// stripEscape, tabwriter.Escape bytes around color codes are removed after
// width calculation.
func NewTabWriter(out io.Writer, stripEscape bool) *tabwriter.Writer {
	var flags uint
	if stripEscape {
		flags = tabwriter.StripEscape
	}
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', flags)
}

// WriteTable renders a simple tab-separated table with optional headers.
func WriteTable(out io.Writer, stripEscape bool, noHeaders bool, headers []string, rows [][]string) error {
	w := NewTabWriter(out, stripEscape)
	if !noHeaders {
		if _, err := fmt.Fprintln(w, strings.Join(headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteSteps prints a heading followed by numbered steps. Nothing is
// written when steps is empty.
func WriteSteps(out io.Writer, heading string, steps []string) error {
	if len(steps) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out, heading); err != nil {
		return err
	}
	for i, step := range steps {
		if _, err := fmt.Fprintf(out, "  %d. %s\n", i+1, step); err != nil {
			return err
		}
	}
	return nil
}
