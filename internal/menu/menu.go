// Package menu runs the interactive numbered menu.
package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Actions are the operations offered by the menu.
type Actions interface {
	Migrate(ctx context.Context) error
	Search(ctx context.Context, fragment string) error
	Top(ctx context.Context) error
}

const banner = `
FootStats
  1. Run migration
  2. Search player by name
  3. Show top 5 teams
  4. Exit
`

// Run prompts for choices on in until the user exits, input ends or ctx is
// cancelled. Cancellation is noticed while waiting for input. An action that
// fails is reported on out and the menu is shown again.
func Run(ctx context.Context, in io.Reader, out io.Writer, actions Actions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprint(out, banner+"Choice: "); err != nil {
			return err
		}

		choice, ok, err := nextLine(ctx, lines)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		switch choice {
		case "1":
			err = actions.Migrate(ctx)
		case "2":
			if _, err := fmt.Fprint(out, "Name fragment: "); err != nil {
				return err
			}
			var fragment string
			fragment, ok, err = nextLine(ctx, lines)
			if err != nil {
				return err
			}
			if !ok {
				_, err := fmt.Fprintln(out)
				return err
			}
			err = actions.Search(ctx, fragment)
		case "3":
			err = actions.Top(ctx)
		case "4":
			_, err := fmt.Fprintln(out, "Bye.")
			return err
		default:
			err = fmt.Errorf("invalid choice %q, enter a number from 1 to 4", choice)
		}

		if err != nil {
			if _, werr := fmt.Fprintf(out, "Error: %v\n", err); werr != nil {
				return werr
			}
		}
	}

	_, err := fmt.Fprintln(out)
	return err
}

type line struct {
	text string
	err  error
}

// readLines scans in on its own goroutine so that a blocked read does not
// hold back cancellation. The channel is closed at end of input.
func readLines(ctx context.Context, in io.Reader) <-chan line {
	lines := make(chan line)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- line{text: strings.TrimSpace(scanner.Text())}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return lines
}

func nextLine(ctx context.Context, lines <-chan line) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case l, ok := <-lines:
		if !ok {
			return "", false, nil
		}
		if l.err != nil {
			return "", false, fmt.Errorf("failed to read input: %w", l.err)
		}
		return l.text, true, nil
	}
}
