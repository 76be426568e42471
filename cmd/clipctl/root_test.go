package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	want := []string{"adapters", "sources", "fetch", "run", "runs", "tick", "pair", "pair-pending", "worker"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestFetchRequiresSourceID(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"fetch"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"ID", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Count")
	assert.Equal(t, 2, strings.Count(out, "│ a")+strings.Count(out, "│ b"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatTime(nil))
	assert.Equal(t, "-", formatTime(&time.Time{}))
	assert.Equal(t, "0.650", formatScore(0.65))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
