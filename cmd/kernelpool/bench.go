package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/kernelpool/internal/kernels"
	"github.com/born-ml/kernelpool/internal/parallel"
)

type benchOptions struct {
	kernel     string
	size       int
	iterations int
	callers    int
	profile    bool
	baseline   bool
}

func newBenchCommand(a *app) *cobra.Command {
	var o benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time a kernel on the configured pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.bench(cmd, o)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&o.kernel, "kernel", "matmul", `kernel to run: "matmul", "softmax" or "add"`)
	fs.IntVar(&o.size, "size", 256, "matrix side, add uses size*1024 elements")
	fs.IntVar(&o.iterations, "iterations", 10, "kernel calls per caller")
	fs.IntVar(&o.callers, "callers", 1, "goroutines calling into the pool concurrently")
	fs.BoolVar(&o.profile, "profile", false, "print the pool profile as JSON")
	fs.BoolVar(&o.baseline, "baseline", false, "also time the kernel without a pool")
	return cmd
}

// kernelFunc runs one kernel call. Inputs are shared between callers and
// never written.
type kernelFunc func(p parallel.ThreadPool) error

func newKernel(name string, size int) (kernelFunc, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}
	r := rand.New(rand.NewSource(1))
	random := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = r.Float32()
		}
		return out
	}

	switch name {
	case "matmul":
		a, err := randomMatrix(size, size, random)
		if err != nil {
			return nil, err
		}
		b, err := randomMatrix(size, size, random)
		if err != nil {
			return nil, err
		}
		return func(p parallel.ThreadPool) error {
			_, err := kernels.MatMul(p, a, b)
			return err
		}, nil
	case "softmax":
		x, err := randomMatrix(size, size, random)
		if err != nil {
			return nil, err
		}
		return func(p parallel.ThreadPool) error {
			_, err := kernels.Softmax(p, x)
			return err
		}, nil
	case "add":
		n := size * 1024
		a, b := random(n), random(n)
		return func(p parallel.ThreadPool) error {
			return kernels.Add(p, make([]float32, n), a, b)
		}, nil
	default:
		return nil, fmt.Errorf("unknown kernel %q", name)
	}
}

func randomMatrix(rows, cols int, random func(n int) []float32) (*kernels.Matrix, error) {
	m, err := kernels.FromSlice(rows, cols, random(max(rows*cols, 0)))
	if err != nil {
		return nil, fmt.Errorf("benchmark input: %w", err)
	}
	return m, nil
}

func (a *app) bench(cmd *cobra.Command, o benchOptions) error {
	if o.iterations <= 0 || o.callers <= 0 {
		return fmt.Errorf("iterations and callers must be positive")
	}
	run, err := newKernel(o.kernel, o.size)
	if err != nil {
		return err
	}

	p, err := parallel.New(a.cfg.PoolOptions(a.log))
	if err != nil {
		return err
	}
	defer p.Close()

	log := zap.S().Named("bench")
	log.Infow("starting benchmark",
		"kernel", o.kernel,
		"size", o.size,
		"engine", p.Engine(),
		"threads", p.NumThreads(),
		"callers", o.callers,
		"iterations", o.iterations)

	out := cmd.OutOrStdout()
	if o.baseline {
		elapsed, err := timeCalls(cmd, nil, run, o)
		if err != nil {
			return err
		}
		report(cmd, "sequential", elapsed, o)
		log.Debugw("baseline done", "elapsed", elapsed)
	}

	if o.profile {
		p.StartProfiling()
	}
	elapsed, err := timeCalls(cmd, p, run, o)
	if err != nil {
		return err
	}
	report(cmd, string(p.Engine()), elapsed, o)
	if o.profile {
		fmt.Fprintln(out, p.StopProfiling())
	}
	return nil
}

// timeCalls runs o.iterations calls of run from o.callers goroutines and
// returns the wall time.
func timeCalls(cmd *cobra.Command, p parallel.ThreadPool, run kernelFunc, o benchOptions) (time.Duration, error) {
	g, ctx := errgroup.WithContext(cmd.Context())
	began := time.Now()
	for range o.callers {
		g.Go(func() error {
			for range o.iterations {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := run(p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return time.Since(began), err
}

func report(cmd *cobra.Command, label string, elapsed time.Duration, o benchOptions) {
	calls := o.callers * o.iterations
	fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-8s calls=%d total=%v per_call=%v\n",
		label, o.kernel, calls, elapsed.Round(time.Microsecond), (elapsed / time.Duration(calls)).Round(time.Microsecond))
}
