package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/djmd/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "no playlist named \"2027\"", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "no playlist named \"2027\"", resp.Error.Message)
}

func TestOutputFormatter_YAMLSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "yaml",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"usn": 1001})
	require.NoError(t, err)
	assert.Equal(t, "status: ok\ndata:\n  usn: 1001\n", buf.String())
}

func TestOutputFormatter_YAMLError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "yaml",
		Writer: buf,
	}

	err := formatter.Error("USAGE", "bad flag", nil)
	require.NoError(t, err)

	var resp struct {
		Status string   `yaml:"status"`
		Error  CLIError `yaml:"error"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "USAGE", resp.Error.Code)
	assert.Equal(t, "bad flag", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(usnResult{USN: 1001})
	require.NoError(t, err)
	assert.Equal(t, "1001\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("NOT_FOUND", "no tag named \"x\"", map[string]string{"tag": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error [NOT_FOUND]: no tag named \"x\"\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"tag": "x"}
	err := formatter.Error("NOT_FOUND", "no tag named \"x\"", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "master.db")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Opening master.db")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"usage", usageErrorf("bad"), ErrCodeUsage, ExitCommandError},
		{"canceled", fmt.Errorf("tag: %w", context.Canceled), ErrCodeCanceled, ExitFailure},
		{"not found", store.NewError(store.ErrCodeNotFound, "find", nil), "NOT_FOUND", ExitFailure},
		{"conflict", store.NewError(store.ErrCodeConflict, "add", nil), "CONFLICT", ExitFailure},
		{"exhausted", store.NewError(store.ErrCodeAllocationExhausted, "create", nil), "ALLOCATION_EXHAUSTED", ExitFailure},
		{"configuration", store.NewError(store.ErrCodeConfiguration, "load", nil), "CONFIGURATION", ExitCommandError},
		{"unavailable", fmt.Errorf("open: %w", store.NewError(store.ErrCodeUnavailable, "open", nil)), "STORE_UNAVAILABLE", ExitCommandError},
		{"other", errors.New("boom"), ErrCodeGeneric, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classifyError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := fail(formatter, store.NewError(store.ErrCodeNotFound, "find playlist", errors.New(`no playlist named "x"`)))
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Error [NOT_FOUND]: find playlist: NOT_FOUND: no playlist named \"x\"\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "failed", errors.New("x"))))
	assert.Equal(t, ExitCommandError, GetExitCode(usageErrorf("bad")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.False(t, IsReported(NewExitError(ExitFailure, "x")))
}

func TestCheckpointResult_String(t *testing.T) {
	r := checkpointResult{LogFrames: 4, CheckpointedFrames: 4, CheckpointedBytes: 16384}
	assert.Equal(t, "checkpointed 4/4 frames (16 kB)", r.String())
}
