package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunNoArgsPrintsUsageAndExitsOne(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "periodic <index_path>")
}

func TestRunHelpPrintsUsageAndExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "--help"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "FLAGS:")
}

func TestRunRejectsTraceHashOnlyWithReceiptOut(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "index.json", "--trace_hash_only", "--receipt-out", "out.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "--trace_hash_only cannot be combined")
}

func TestRunRejectsTraceHashOnlyWithReceiptDSSEVerify(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "index.json", "--trace_hash_only", "--receipt-dsse-verify"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}

func TestRunRejectsDSSEOutWithoutKey(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "index.json", "--receipt-dsse-out", "out.dsse.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "--receipt-dsse-out requires --receipt-dsse-key")
}

func TestRunRejectsMultiplePositionalArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "index.json", "extra.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unexpected extra positional argument")
}

func TestRunRejectsMalformedAsOf(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "index.json", "--as_of", "not-a-date"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "--as_of")
}

func TestRunRejectsUnreadableIndexPath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"periodic", "/nonexistent/index.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}
