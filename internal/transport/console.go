package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/roach88/studybot/internal/session"
)

// ErrEmptyLine is returned by ParseLine for blank input.
var ErrEmptyLine = errors.New("empty line")

// Console is a line-oriented Transport for running the bot in a terminal.
//
// Input lines have the form "<identity> <input>": input starting with "/"
// is a command, "!" a button press, anything else free text. Output lines
// are prefixed with the identity; keyboards are printed one row per line as
// [label|data].
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes bot output to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Send implements Transport.
func (c *Console) Send(_ context.Context, id session.Identity, msg Message) error {
	return c.write(id, "", msg)
}

// EditLast implements Transport.
func (c *Console) EditLast(_ context.Context, id session.Identity, msg Message) error {
	return c.write(id, "(edit) ", msg)
}

func (c *Console) write(id session.Identity, marker string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, Render(id, marker, msg))
	return err
}

// Render formats msg the way Console prints it.
func Render(id session.Identity, marker string, msg Message) string {
	var b strings.Builder
	for i, line := range strings.Split(msg.Text, "\n") {
		if i == 0 {
			fmt.Fprintf(&b, "[%s] %s%s\n", id, marker, line)
			continue
		}
		fmt.Fprintf(&b, "    %s\n", line)
	}
	for _, row := range msg.Buttons {
		labels := make([]string, len(row))
		for i, btn := range row {
			labels[i] = fmt.Sprintf("[%s|%s]", btn.Text, btn.Data)
		}
		fmt.Fprintf(&b, "    %s\n", strings.Join(labels, " "))
	}
	return b.String()
}

// ParseLine turns one console input line into an Update.
func ParseLine(line string) (Update, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Update{}, ErrEmptyLine
	}
	id, input, ok := strings.Cut(line, " ")
	input = strings.TrimSpace(input)
	if !ok || input == "" {
		return Update{}, fmt.Errorf("parse %q: want \"<identity> <input>\"", line)
	}

	u := Update{Identity: session.Identity(id), Name: id}
	switch {
	case strings.HasPrefix(input, "/"):
		u.Kind = UpdateCommand
		u.Data, _, _ = strings.Cut(strings.TrimPrefix(input, "/"), " ")
		if u.Data == "" {
			return Update{}, fmt.Errorf("parse %q: empty command", line)
		}
	case strings.HasPrefix(input, "!"):
		u.Kind = UpdateButton
		u.Data = strings.TrimPrefix(input, "!")
		if u.Data == "" {
			return Update{}, fmt.Errorf("parse %q: empty button data", line)
		}
	default:
		u.Kind = UpdateText
		u.Data = input
	}
	return u, nil
}

// Scan reads updates from r until EOF or ctx is done, calling fn for each
// parsed line. Unparseable lines are reported through onErr and skipped.
func Scan(ctx context.Context, r io.Reader, fn func(Update), onErr func(line string, err error)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		u, err := ParseLine(line)
		if errors.Is(err, ErrEmptyLine) || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if err != nil {
			if onErr != nil {
				onErr(line, err)
			}
			continue
		}
		fn(u)
	}
	return sc.Err()
}
