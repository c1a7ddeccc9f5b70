// Package wizard asks questions on a line-oriented terminal.
package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrAborted is returned when input ends before an answer.
var ErrAborted = errors.New("input is closed")

// Choice is an option of Select.
type Choice struct {
	Value string
	Label string
}

type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Select asks to choose one of choices, by its number or its value.
//
// It asks again until a valid answer is given.
func (p *Prompter) Select(question string, choices []Choice) (Choice, error) {
	if len(choices) == 0 {
		return Choice{}, fmt.Errorf("no choices for: %s", question)
	}
	for {
		fmt.Fprintln(p.out, question)
		for i, c := range choices {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, c.Label)
		}
		fmt.Fprint(p.out, "> ")

		ans, err := p.readLine()
		if err != nil {
			return Choice{}, err
		}
		if n, err := strconv.Atoi(ans); err == nil && 1 <= n && n <= len(choices) {
			return choices[n-1], nil
		}
		for _, c := range choices {
			if ans != "" && (ans == c.Value || strings.EqualFold(ans, c.Label)) {
				return c, nil
			}
		}
		fmt.Fprintf(p.out, "invalid choice: %q\n", ans)
	}
}

// Text asks a free text. Empty answer is defaultValue.
func (p *Prompter) Text(question string, defaultValue string) (string, error) {
	if defaultValue == "" {
		fmt.Fprintf(p.out, "%s: ", question)
	} else {
		fmt.Fprintf(p.out, "%s [%s]: ", question, defaultValue)
	}
	ans, err := p.readLine()
	if err != nil {
		return "", err
	}
	if ans == "" {
		return defaultValue, nil
	}
	return ans, nil
}

// Confirm asks yes or no. Empty answer is defaultValue.
func (p *Prompter) Confirm(question string, defaultValue bool) (bool, error) {
	hint := "y/N"
	if defaultValue {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(p.out, "%s [%s]: ", question, hint)
		ans, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(ans) {
		case "":
			return defaultValue, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
