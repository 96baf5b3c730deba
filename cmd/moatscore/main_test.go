package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout. Flag
// state is reset first because the commands are package globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error", "--env-file", t.TempDir()+"/.env"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStickerCommand(t *testing.T) {
	out, err := execute(t, "sticker", "--eps", "5", "--growth", "15", "--pe", "30")
	require.NoError(t, err)

	// 5 * 1.15^10 = 20.23; * 30 = 606.83; / 1.15^10 = 150.00
	assert.Contains(t, out, "Sticker price")
	assert.Contains(t, out, "150.00")
	assert.Contains(t, out, "75.00")
}

func TestStickerCommandNonPositiveEPS(t *testing.T) {
	out, err := execute(t, "sticker", "--eps", "-1", "--growth", "15", "--pe", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "No sticker price")
}

func TestStickerCommandMissingFlag(t *testing.T) {
	_, err := execute(t, "sticker", "--eps", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "growth")
}

func TestPaybackCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"flat earnings", []string{"--price", "100", "--eps", "10", "--growth", "0"}, "Payback time: 10 years"},
		{"no earnings", []string{"--price", "100", "--eps", "0", "--growth", "10"}, "more than 49 years"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"payback"}, tt.args...)...)
			require.NoError(t, err)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestPaybackCommandRejectsTotalLoss(t *testing.T) {
	_, err := execute(t, "payback", "--price", "100", "--eps", "10", "--growth", "-100")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "moatscore dev")
}

func TestStatusCommandMasksSecrets(t *testing.T) {
	t.Setenv("MOATSCORE_PROVIDERS_FMP_API_KEY", "supersecretkey")
	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "FMP API Key")
	assert.NotContains(t, out, "supersecretkey")
}
