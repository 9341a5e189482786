package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/born-ml/kernelpool/internal/parallel"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the host and the effective pool configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parallel.New(a.cfg.PoolOptions(a.log))
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cpus:            %d\n", runtime.NumCPU())
			fmt.Fprintf(out, "gomaxprocs:      %d\n", runtime.GOMAXPROCS(0))
			fmt.Fprintf(out, "arch:            %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "engine:          %s\n", p.Engine())
			fmt.Fprintf(out, "threads:         %d\n", p.NumThreads())
			fmt.Fprintf(out, "parallelism:     %d\n", parallel.DegreeOfParallelism(p))
			if p.Engine() == parallel.EngineRing {
				fmt.Fprintf(out, "queue capacity:  %d\n", a.cfg.Pool.QueueCapacity)
			}
			if len(a.cfg.Pool.Affinity) > 0 {
				fmt.Fprintf(out, "affinity:        %v\n", a.cfg.Pool.Affinity)
			}
			return nil
		},
	}
}
