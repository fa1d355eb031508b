package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Update
	}{
		{"u1 /start", Update{Identity: "u1", Kind: UpdateCommand, Data: "start", Name: "u1"}},
		{"u1 /help me", Update{Identity: "u1", Kind: UpdateCommand, Data: "help", Name: "u1"}},
		{"u1 !add_task", Update{Identity: "u1", Kind: UpdateButton, Data: "add_task", Name: "u1"}},
		{"u1 Read chapter 3", Update{Identity: "u1", Kind: UpdateText, Data: "Read chapter 3", Name: "u1"}},
		{"  u2   30  ", Update{Identity: "u2", Kind: UpdateText, Data: "30", Name: "u2"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	_, err := ParseLine("   ")
	assert.ErrorIs(t, err, ErrEmptyLine)

	for _, line := range []string{"u1", "u1 /", "u1 !"} {
		_, err := ParseLine(line)
		assert.Error(t, err, line)
	}
}

func TestConsole_Render(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()

	msg := WithButtons("Pick one\nor cancel",
		Row(Btn("Yes", "yes"), Btn("No", "no")),
		Row(Btn("Cancel", "cancel")),
	)
	require.NoError(t, c.Send(ctx, "u1", msg))
	require.NoError(t, c.EditLast(ctx, "u1", Text("done")))

	want := strings.Join([]string{
		"[u1] Pick one",
		"    or cancel",
		"    [Yes|yes] [No|no]",
		"    [Cancel|cancel]",
		"[u1] (edit) done",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestScan(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"",
		"u1 /start",
		"bogus",
		"u1 !reg_participant",
	}, "\n")

	var got []Update
	var bad []string
	err := Scan(context.Background(), strings.NewReader(input),
		func(u Update) { got = append(got, u) },
		func(line string, _ error) { bad = append(bad, line) },
	)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, UpdateCommand, got[0].Kind)
	assert.Equal(t, UpdateButton, got[1].Kind)
	assert.Equal(t, []string{"bogus"}, bad)
}
