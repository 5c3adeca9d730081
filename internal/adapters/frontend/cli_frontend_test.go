package frontend

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCLI(t *testing.T, cfg CLIConfig, stdin string) (*CLIFrontend, *bytes.Buffer) {
	t.Helper()
	cli, err := NewCLIFrontend(newTestService(t, nil, true), nil, zap.NewNop(), cfg)
	require.NoError(t, err)
	out := &bytes.Buffer{}
	cli.in = strings.NewReader(stdin)
	cli.out = out
	return cli, out
}

func TestCLIFrontend_Outputs(t *testing.T) {
	const input = `<p>Hi <a href="javascript:alert(1)">there</a></p>`

	tests := []struct {
		output   string
		contains string
	}{
		{output: OutputFragment, contains: "mv-scope"},
		{output: OutputDocument, contains: "<!DOCTYPE html>"},
		{output: OutputHost, contains: "<iframe"},
		{output: "", contains: "<iframe"},
	}

	for _, tt := range tests {
		t.Run("output "+tt.output, func(t *testing.T) {
			cli, out := newTestCLI(t, CLIConfig{Output: tt.output}, input)
			require.NoError(t, cli.Start())
			assert.Contains(t, out.String(), tt.contains)
			assert.NotContains(t, out.String(), "javascript:")
			assert.NoError(t, cli.Stop())
		})
	}
}

func TestCLIFrontend_JSON(t *testing.T) {
	cli, out := newTestCLI(t, CLIConfig{Output: OutputJSON, Strategy: "inline"}, "<p>json</p>")
	require.NoError(t, cli.Start())

	var rendered core.RenderedEmail
	require.NoError(t, json.Unmarshal(out.Bytes(), &rendered))
	assert.Equal(t, render.Inline, rendered.Strategy)
	assert.Equal(t, "sanitized", rendered.Status)
}

func TestCLIFrontend_ReadsMIMEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.eml")
	msg := "From: news@remote.example\r\n" +
		"Subject: Weekly\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		`<p>Issue 1</p><img src="http://remote.example/pixel.gif">` + "\r\n"
	require.NoError(t, os.WriteFile(path, []byte(msg), 0o600))

	cli, out := newTestCLI(t, CLIConfig{InputFile: path, Output: OutputJSON}, "")
	require.NoError(t, cli.Start())

	var rendered core.RenderedEmail
	require.NoError(t, json.Unmarshal(out.Bytes(), &rendered))
	assert.Equal(t, 1, rendered.RemoteResources)
	assert.Equal(t, 1, rendered.RemoteBlocked)
	assert.NotContains(t, rendered.Markup, "pixel.gif")
}

func TestCLIFrontend_TrustedSenderOverride(t *testing.T) {
	cli, out := newTestCLI(t, CLIConfig{Output: OutputJSON, Sender: "team@trusted.example"},
		`<img src="https://cdn.trusted.example/logo.png">`)
	require.NoError(t, cli.Start())

	var rendered core.RenderedEmail
	require.NoError(t, json.Unmarshal(out.Bytes(), &rendered))
	assert.Equal(t, 0, rendered.RemoteBlocked)
}

func TestCLIFrontend_Errors(t *testing.T) {
	_, err := NewCLIFrontend(nil, nil, nil, CLIConfig{Output: "pdf"})
	assert.ErrorIs(t, err, ErrUnknownOutput)

	cli, _ := newTestCLI(t, CLIConfig{InputFile: filepath.Join(t.TempDir(), "missing.html")}, "")
	assert.Error(t, cli.Start())

	cli, _ = newTestCLI(t, CLIConfig{Strategy: "shadow"}, "<p>x</p>")
	assert.ErrorIs(t, cli.Start(), core.ErrInvalidRequest)
}
