package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernelpool/internal/kernels"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "kernelpool "+version+"\n", out)
}

func TestInfo(t *testing.T) {
	out, err := execute(t, "info", "--threads", "2", "--engine", "slot")
	require.NoError(t, err)
	assert.Contains(t, out, "engine:          slot")
	assert.Contains(t, out, "threads:         2")
	assert.Contains(t, out, "parallelism:     3")
	assert.NotContains(t, out, "queue capacity")
}

func TestInfo_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernelpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  threads: 1\n  queue_capacity: 16\n"), 0o600))

	out, err := execute(t, "info", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "threads:         1")
	assert.Contains(t, out, "queue capacity:  16")
}

func TestInfo_InvalidEngine(t *testing.T) {
	_, err := execute(t, "info", "--engine", "fifo")
	assert.Error(t, err)
}

func TestBench(t *testing.T) {
	for _, kernel := range []string{"matmul", "softmax", "add"} {
		t.Run(kernel, func(t *testing.T) {
			out, err := execute(t, "bench",
				"--kernel", kernel,
				"--size", "16",
				"--iterations", "3",
				"--callers", "2",
				"--threads", "2",
				"--baseline",
				"--profile")
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 3)
			assert.True(t, strings.HasPrefix(lines[0], "sequential"))
			assert.True(t, strings.HasPrefix(lines[1], "ring"))
			assert.Contains(t, lines[1], "calls=6")

			var profile struct {
				Threads int `json:"threads"`
				Main    struct {
					Calls int `json:"calls"`
				} `json:"main"`
			}
			require.NoError(t, json.Unmarshal([]byte(lines[2]), &profile))
			assert.Equal(t, 2, profile.Threads)
			assert.Equal(t, 6, profile.Main.Calls)
		})
	}
}

func TestBench_UnknownKernel(t *testing.T) {
	_, err := execute(t, "bench", "--kernel", "conv")
	assert.ErrorContains(t, err, "unknown kernel")
}

func TestNewKernel(t *testing.T) {
	for _, name := range []string{"matmul", "softmax", "add"} {
		run, err := newKernel(name, 4)
		require.NoError(t, err, name)
		require.NoError(t, run(nil), name)
	}

	_, err := newKernel("matmul", 0)
	assert.ErrorContains(t, err, "size must be positive")

	_, err = randomMatrix(-1, 4, func(n int) []float32 { return make([]float32, n) })
	assert.ErrorIs(t, err, kernels.ErrInvalidShape)
	assert.ErrorContains(t, err, "benchmark input")
}
