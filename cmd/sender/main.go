package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/atlassian/mockstatsd/pkg/client"
)

func main() {
	opts := parseArgs(os.Args[1:])
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sendLines(opts.Target, opts.Lines); err != nil {
		logrus.Fatalf("Failed to send line: %v", err)
	}
	if opts.totalCount() == 0 {
		return
	}
	if err := generate(ctx, &opts); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func sendLines(address string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	c, err := client.New(address, client.WithLogger(logrus.StandardLogger()))
	if err != nil {
		return err
	}
	defer c.Close()
	for _, line := range lines {
		if err := c.Send(line); err != nil {
			return err
		}
	}
	return nil
}

func generate(ctx context.Context, opts *commandOptions) error {
	generators := make([]*metricGenerator, 0, opts.Workers)
	clients := make([]*client.Client, 0, opts.Workers)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	perWorker := rate.Limit(float64(opts.Rate) / float64(opts.Workers))
	for i := uint(0); i < opts.Workers; i++ {
		c, err := client.New(opts.Target,
			client.WithLogger(logrus.StandardLogger()),
			client.WithRateLimit(perWorker, 1),
		)
		if err != nil {
			return err
		}
		clients = append(clients, c)
		generators = append(generators, newMetricGenerator(opts, rand.New(rand.NewSource(rand.Int63()))))
	}

	var wg wait.Group
	for i := range generators {
		c, generator := clients[i], generators[i]
		wg.StartWithContext(ctx, func(ctx context.Context) {
			sendMetricsWorker(ctx, c, opts.DatagramSize, generator)
		})
	}

	chDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(chDone)
	}()

	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()
	for {
		select {
		case <-chDone:
			logrus.Info("Done")
			return nil
		case <-statusTicker.C:
			fields := logrus.Fields{}
			for _, mg := range generators {
				for kind, left := range mg.remaining() {
					if n, ok := fields[kind.String()]; ok {
						left += n.(uint64)
					}
					fields[kind.String()] = left
				}
			}
			logrus.WithFields(fields).Info("Remaining")
		}
	}
}

// sendMetricsWorker packs generated lines into datagrams of at most bufSize bytes.
func sendMetricsWorker(ctx context.Context, c *client.Client, bufSize uint, generator *metricGenerator) {
	b := &strings.Builder{}
	flush := func() {
		if b.Len() == 0 {
			return
		}
		if err := c.Send(b.String()); err != nil {
			logrus.WithError(err).Warn("Pausing for 1 second, error sending packet")
			time.Sleep(1 * time.Second)
		}
		b.Reset()
	}

	for ctx.Err() == nil {
		line, ok := generator.next()
		if !ok {
			break
		}
		if uint(b.Len()+len(line)+1) > bufSize {
			flush()
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	flush()
}
