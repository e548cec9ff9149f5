package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/spdebarrier/metrics"
	"github.com/notargets/spdebarrier/model"
	"github.com/notargets/spdebarrier/problem"
)

func newEvalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval PROBLEM.yaml",
		Short: "Evaluate the negative log-likelihood at the starting parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eval(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	f := cmd.Flags()
	f.Bool("gradient", false, "also print the gradient")
	f.Bool("report", false, "print delta-method standard errors (needs a positive definite Hessian)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address while evaluating")
	return cmd
}

func (a *app) eval(ctx context.Context, w io.Writer, path string) error {
	p, err := problem.Load(path, a.log)
	if err != nil {
		return err
	}
	obj, err := model.NewObjective(p.Data)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		stop, err := serveMetrics(addr, reg, a.log)
		if err != nil {
			return err
		}
		defer stop()
	}
	prob := rec.Instrument(obj.Problem())

	start := time.Now()
	res := obj.Evaluate(p.Start)
	rec.Observe(metrics.KindValue, start, res.NLL)
	a.log.Info("objective evaluated", zap.Float64("nll", res.NLL), zap.Duration("elapsed", time.Since(start)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "nll\t%.10g\n", res.NLL)
	fmt.Fprintf(tw, "  spatial\t%.10g\n", res.Contributions.Spatial)
	fmt.Fprintf(tw, "  residual\t%.10g\n", res.Contributions.Residual)
	fmt.Fprintf(tw, "  observation\t%.10g\n", res.Contributions.Observation)
	for _, d := range res.Reported {
		fmt.Fprintf(tw, "%s\t%.10g\n", d.Name, d.Value)
	}

	if a.cfg.Eval.Gradient {
		if err := ctx.Err(); err != nil {
			return err
		}
		grad := make([]float64, len(p.Start))
		prob.Grad(grad, p.Start)
		fmt.Fprintf(tw, "gradient norm\t%.6g\n", floats.Norm(grad, 2))
		for i, name := range obj.Layout().Names() {
			fmt.Fprintf(tw, "  d/d %s\t%.6g\n", name, grad[i])
		}
	}

	if a.cfg.Eval.Report {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, err := obj.SDReport(p.Start)
		if err != nil {
			tw.Flush()
			return err
		}
		fmt.Fprintln(tw, "\nname\testimate\tstd. error")
		for _, e := range rep.Derived {
			fmt.Fprintf(tw, "%s\t%.6g\t%.6g\n", e.Name, e.Value, e.StdErr)
		}
		for _, e := range rep.Params {
			fmt.Fprintf(tw, "%s\t%.6g\t%.6g\n", e.Name, e.Value, e.StdErr)
		}
	}
	return tw.Flush()
}

// serveMetrics exposes reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %q: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
