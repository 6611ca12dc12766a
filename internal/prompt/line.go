package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/skaphos/branchkeeper/internal/cliio"
)

// Line asks questions over plain reader/writer streams. It is used when
// stdin is not a terminal.
type Line struct {
	In       io.Reader
	Out      io.Writer
	PageSize int

	reader *bufio.Reader
}

func (l *Line) buffered() *bufio.Reader {
	if l.reader == nil {
		l.reader = bufio.NewReader(l.In)
	}
	return l.reader
}

func (l *Line) Confirm(_ context.Context, question string) (bool, error) {
	return cliio.PromptYesNo(l.Out, l.buffered(), question+" [y/N] ")
}

// Select prints one page of numbered options at a time. Users answer with a
// number, n or p to change page, or q to cancel.
func (l *Line) Select(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, ErrCancelled
	}
	pageIndex := 0
	for {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		page := Paginate(options, l.PageSize, pageIndex, 0)
		fmt.Fprintln(l.Out, title)
		for i, item := range page.Items {
			fmt.Fprintf(l.Out, "  %d) %s\n", page.Offset+i+1, item)
		}
		fmt.Fprint(l.Out, footer(page))

		line, err := l.buffered().ReadString('\n')
		if err != nil && err != io.EOF {
			return -1, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == "n" && page.HasNext:
			pageIndex++
			continue
		case answer == "p" && page.HasPrev:
			pageIndex--
			continue
		case answer == "q" || (answer == "" && err == io.EOF):
			return -1, ErrCancelled
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		if err == io.EOF {
			return -1, ErrCancelled
		}
		fmt.Fprintf(l.Out, "invalid choice %q\n", answer)
	}
}

func footer(p Page) string {
	var keys []string
	if p.HasPrev {
		keys = append(keys, "p=prev")
	}
	if p.HasNext {
		keys = append(keys, "n=next")
	}
	keys = append(keys, "q=cancel")
	return fmt.Sprintf("page %d/%d (%s) > ", p.Index+1, p.Count, strings.Join(keys, ", "))
}
