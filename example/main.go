package main

import (
	"context"
	"fmt"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/grafana/fibbench"
	"github.com/grafana/fibbench/fibonacci"
)

//go:noinline
func loop(c context.Context) {
	pyroscope.TagWrapper(c, pyroscope.Labels("function", "loop"), func(c context.Context) {
		start := time.Now()
		for i := 0; i < 100000; i++ {
			_, _ = fibonacci.Iterative(1000)
		}
		fmt.Println(time.Since(start).Seconds())
	})
}

//go:noinline
func recursion(c context.Context) {
	pyroscope.TagWrapper(c, pyroscope.Labels("function", "recursion"), func(c context.Context) {
		start := time.Now()
		v, _ := fibonacci.Recursive(30)
		fmt.Println(v)
		fmt.Println(time.Since(start).Seconds())
	})
}

func main() {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "fibbench.example",
		ServerAddress:   "http://localhost:4040",
		Logger:          fibbench.StandardLogger,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = profiler.Stop() }()

	seq, _ := fibonacci.Sequence(10)
	fmt.Println(seq)

	pyroscope.TagWrapper(context.Background(), pyroscope.Labels("example", "fibonacci"), func(c context.Context) {
		loop(c)
		recursion(c)
	})

	b, err := fibbench.New(fibbench.Config{
		ApplicationName: "fibbench.example",
		N:               30,
		Iterations:      10,
		Variants:        []fibbench.Variant{fibbench.VariantIterative, fibbench.VariantRecursive},
		Logger:          fibbench.StandardLogger,
	})
	if err != nil {
		panic(err)
	}
	if err = b.Run(context.Background()); err != nil {
		panic(err)
	}
}
