package review

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opengov-watch/bounty-archiver/internal/state"
)

// Prompt is the interactive Decider used by the review command. It
// reads one-letter choices from in and writes the session dialog to out.
type Prompt struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewPrompt creates an interactive prompt over the given streams.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{reader: bufio.NewReader(in), out: out}
}

// Decide displays a suggestion and collects the reviewer's verdict.
func (p *Prompt) Decide(sg state.Suggestion, position, total int) (Verdict, error) {
	fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(p.out, "SUGGESTION %d of %d\n", position, total)
	fmt.Fprintf(p.out, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(p.out, "Record:     #%d\n", sg.RecordID)
	fmt.Fprintf(p.out, "URL:        %s\n", sg.URL)
	fmt.Fprintf(p.out, "Mode:       %s\n", sg.Mode)
	if sg.Mode == state.ModeRecursive {
		fmt.Fprintf(p.out, "Max depth:  %d\n", sg.MaxDepth)
	}
	fmt.Fprintf(p.out, "Source:     %s\n", sg.Source)
	fmt.Fprintf(p.out, "Categories: %s\n", strings.Join(sg.Categories, ", "))
	fmt.Fprintf(p.out, "Type:       %s\n", sg.Type)

	for {
		fmt.Fprintln(p.out, "\n[A]ccept  [M]odify  [I]gnore  [S]kip  [Q]uit")
		fmt.Fprint(p.out, "Your choice: ")

		line, err := p.reader.ReadString('\n')
		if err != nil {
			// EOF mid-session behaves like quit so nothing is lost.
			if err == io.EOF {
				return Verdict{Decision: Quit}, nil
			}
			return Verdict{}, err
		}

		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "A":
			return Verdict{Decision: Accept}, nil
		case "M":
			modified, ok, err := p.modify(sg)
			if err != nil {
				return Verdict{}, err
			}
			if !ok {
				return Verdict{Decision: Skip}, nil
			}
			return Verdict{Decision: Modify, Modified: modified}, nil
		case "I":
			fmt.Fprint(p.out, "Reason (optional): ")
			reason, err := p.reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return Verdict{}, err
			}
			return Verdict{Decision: Ignore, Reason: strings.TrimSpace(reason)}, nil
		case "S":
			return Verdict{Decision: Skip}, nil
		case "Q":
			return Verdict{Decision: Quit}, nil
		default:
			fmt.Fprintln(p.out, "Invalid choice. Enter A, M, I, S, or Q.")
		}
	}
}

// modify lets the reviewer override mode and depth before enqueuing.
// Empty input keeps the current value; declining the confirmation keeps
// the suggestion pending.
func (p *Prompt) modify(sg state.Suggestion) (state.Suggestion, bool, error) {
	modified := sg

	fmt.Fprintf(p.out, "Mode (single/recursive) [%s]: ", modified.Mode)
	line, err := p.readLine()
	if err != nil {
		return sg, false, err
	}
	switch strings.ToLower(line) {
	case "":
	case "single":
		modified.Mode = state.ModeSingle
		modified.MaxDepth = 0
	case "recursive":
		modified.Mode = state.ModeRecursive
	default:
		fmt.Fprintln(p.out, "Invalid mode, keeping current value.")
	}

	if modified.Mode == state.ModeRecursive {
		fmt.Fprintf(p.out, "Max depth [%d]: ", modified.MaxDepth)
		line, err := p.readLine()
		if err != nil {
			return sg, false, err
		}
		if line != "" {
			depth, err := strconv.Atoi(line)
			if err != nil || depth < 0 || depth > 9 {
				fmt.Fprintln(p.out, "Invalid depth, keeping current value.")
			} else {
				modified.MaxDepth = depth
			}
		}
	}

	fmt.Fprintf(p.out, "Enqueue %s as %s (depth %d)? [Y/n]: ", modified.URL, modified.Mode, modified.MaxDepth)
	confirm, err := p.readLine()
	if err != nil {
		return sg, false, err
	}
	switch strings.ToLower(confirm) {
	case "", "y", "yes":
		return modified, true, nil
	default:
		return sg, false, nil
	}
}

func (p *Prompt) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
