// Package cli is the interactive practice runner used by therapists to
// smoke-test an assignment end to end against a running gateway.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/client"
)

const maxPromptAttempts = 3

type Options struct {
	BaseURL  string
	Username string
	Password string
}

func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	api := client.NewHTTPClient(opts.BaseURL, nil)
	role, err := api.Login(ctx, opts.Username, opts.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if role != "patient" {
		return fmt.Errorf("practice runs against a patient account, got role %q", role)
	}

	list, err := api.ListAssigned(ctx, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No assignments.")
		return nil
	}

	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Assignments:")
	for _, s := range list {
		fmt.Fprintf(out, "  %d. [topic %d] %s\n", s.ID, s.Topic, s.Title)
	}
	fmt.Fprint(out, "\nAssignment id: ")
	id, ok := readInt(reader)
	if !ok {
		return fmt.Errorf("invalid assignment id")
	}

	ass, err := assignment.Load(ctx, api, int64(id))
	if err != nil {
		return err
	}
	if len(ass.Items) == 0 {
		fmt.Fprintln(out, "Assignment has no items.")
		return nil
	}

	sess := attempt.NewSession(api, ass)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nStarted record %s\n", sess.RecordID())

	for i, it := range ass.Items {
		printItem(out, i+1, it)
		switch it.Type {
		case assignment.TypeMCQ:
			idx, ok := readChoice(reader, out, len(it.Choices))
			if !ok {
				fmt.Fprintln(out, "Skipped.")
				continue
			}
			if err := sess.RecordChoice(ctx, i, idx); err != nil {
				return err
			}
		case assignment.TypeWriting:
			fmt.Fprint(out, "> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			if text := strings.TrimSpace(line); text != "" {
				if err := sess.RecordText(i, text); err != nil {
					return err
				}
			}
		}
	}

	res, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	if sc := res.ScorePtr(); sc != nil {
		fmt.Fprintf(out, "\nScore: %d/%d\n", *sc, res.AutoGradable)
	} else {
		fmt.Fprintln(out, "\nSubmitted. Answers are waiting for review.")
	}

	sess.Queue().Wait()
	for _, f := range sess.Queue().Failures() {
		fmt.Fprintf(out, "warning: %s not persisted: %v\n", f.Name, f.Err)
	}
	return nil
}

func printItem(out io.Writer, number int, it assignment.Item) {
	fmt.Fprintf(out, "\nQ%d: %s\n", number, it.Prompt)
	if it.ImagePath != "" {
		fmt.Fprintf(out, "   (image: %s)\n", it.ImagePath)
	}
	for i, c := range it.Choices {
		label := c.Text
		if label == "" && c.Image != "" {
			label = "[image] " + c.Image
		}
		fmt.Fprintf(out, "%c. %s\n", 'A'+i, label)
	}
}

func readChoice(reader *bufio.Reader, out io.Writer, optionCount int) (int, bool) {
	if optionCount < 1 {
		return -1, false
	}
	maxLetter := byte('A' + optionCount - 1)
	for i := 1; i <= maxPromptAttempts; i++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			return -1, false
		}
		line = strings.ToUpper(strings.TrimSpace(line))
		if len(line) == 1 && line[0] >= 'A' && line[0] <= maxLetter {
			return int(line[0] - 'A'), true
		}
		if i < maxPromptAttempts {
			fmt.Fprintf(out, "Enter a letter A-%c.\n", maxLetter)
		}
	}
	return -1, false
}

func readInt(reader *bufio.Reader) (int, bool) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
