package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"

	"github.com/grafana/fibbench"
	"github.com/grafana/fibbench/upstream/console"
)

type options struct {
	n               int
	iterations      int
	variants        string
	profileTypes    string
	format          string
	topFrames       int
	appName         string
	logLevel        string
	disableGCRuns   bool
	pyroscopeServer string
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := new(options)
	fs.IntVar(&o.n, "n", 1000, "fibonacci index to compute")
	fs.IntVar(&o.iterations, "iterations", fibbench.DefaultIterations, "number of calls per variant")
	fs.StringVar(&o.variants, "variants", string(fibbench.VariantIterative), "comma separated variants: iterative, sequence, recursive, big")
	fs.StringVar(&o.profileTypes, "profile", "", "comma separated profiles to collect per variant: cpu, wall, alloc")
	fs.StringVar(&o.format, "format", string(console.FormatText), "output format: text or json")
	fs.IntVar(&o.topFrames, "top", console.DefaultTopFrames, "frames listed per profile, -1 lists all")
	fs.StringVar(&o.appName, "app-name", fibbench.DefaultAppName, "application name")
	fs.StringVar(&o.logLevel, "log.level", "info", "log level")
	fs.BoolVar(&o.disableGCRuns, "disable-gc-runs", false, "do not run GC around the alloc profile")
	fs.StringVar(&o.pyroscopeServer, "pyroscope.server-address", "", "pyroscope server to push continuous profiles to, disabled if empty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *options) newLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	return logger, nil
}

// benchmarkConfig maps the flags onto a fibbench.Config that reports to out.
func (o *options) benchmarkConfig(out io.Writer, logger *logrus.Logger) (fibbench.Config, error) {
	vs, err := fibbench.ParseVariants(o.variants)
	if err != nil {
		return fibbench.Config{}, err
	}
	pts, err := fibbench.ParseProfileTypes(o.profileTypes)
	if err != nil {
		return fibbench.Config{}, err
	}
	if o.pyroscopeServer != "" {
		for _, t := range pts {
			if t == fibbench.ProfileCPU {
				logger.Infof("cpu profile collector disabled, pyroscope owns the cpu profiler")
				pts = withoutProfileType(pts, fibbench.ProfileCPU)
				break
			}
		}
	}
	c, err := console.New(console.Config{
		Writer:    out,
		Format:    console.Format(o.format),
		TopFrames: o.topFrames,
		Logger:    logger,
	})
	if err != nil {
		return fibbench.Config{}, err
	}
	return fibbench.Config{
		ApplicationName: o.appName,
		N:               o.n,
		Iterations:      o.iterations,
		Variants:        vs,
		ProfileTypes:    pts,
		Upstream:        c,
		Logger:          logger,
		DisableGCRuns:   o.disableGCRuns,
	}, nil
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	logger, err := o.newLogger(os.Stderr)
	if err != nil {
		logrus.Fatalf("invalid log level: %v", err)
	}
	if err = run(o, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(o *options, logger *logrus.Logger) error {
	cfg, err := o.benchmarkConfig(os.Stdout, logger)
	if err != nil {
		return err
	}

	if o.pyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: o.appName,
			ServerAddress:   o.pyroscopeServer,
			Logger:          logger,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				logger.Errorf("stop pyroscope: %v", err)
			}
		}()
	}

	b, err := fibbench.New(cfg)
	if err != nil {
		return err
	}

	// A signal cancels the running variant, Run then returns the context error.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.Run(ctx)
}

func withoutProfileType(pts []fibbench.ProfileType, t fibbench.ProfileType) []fibbench.ProfileType {
	ret := make([]fibbench.ProfileType, 0, len(pts))
	for _, p := range pts {
		if p != t {
			ret = append(ret, p)
		}
	}
	return ret
}
