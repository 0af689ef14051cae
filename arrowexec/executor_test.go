package arrowexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements_TrimsAndDropsEmpty(t *testing.T) {
	got := splitStatements("  CREATE TABLE t(a INT);  ; INSERT INTO t VALUES (1); ")
	assert.Equal(t, []string{"CREATE TABLE t(a INT)", "INSERT INTO t VALUES (1)"}, got)
}

func TestSplitStatements_SingleStatement(t *testing.T) {
	got := splitStatements("CREATE TABLE t(a INT);")
	assert.Equal(t, []string{"CREATE TABLE t(a INT)"}, got)
}

func TestPluralStatementMessage(t *testing.T) {
	assert.Equal(t, "1 statement(s) executed successfully", pluralStatementMessage(1))
	assert.Equal(t, "3 statement(s) executed successfully", pluralStatementMessage(3))
}

func TestEmitTerminal_OnlyEmitsOnce(t *testing.T) {
	out := make(chan ArrowStreamMessage, channelCapacity)
	done := make(chan struct{})

	var count int
	go func() {
		for range out {
			count++
		}
		close(done)
	}()

	// Mirrors the once-guarded emitTerminal shape used in run(), with a
	// local flag standing in for sync.Once: only the first terminal is sent.
	emit := func() {
		var fired bool
		once := func(f func()) {
			if !fired {
				fired = true
				f()
			}
		}
		once(func() {
			out <- ArrowStreamMessage{Kind: MessageComplete, RowCount: 1}
			close(out)
		})
		once(func() {
			out <- ArrowStreamMessage{Kind: MessageComplete, RowCount: 99}
		})
	}
	emit()

	<-done
	assert.Equal(t, 1, count)
}
