package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type commandOptions struct {
	Target       string   `short:"a" long:"address"                 default:"127.0.0.1:8125" description:"Address to send metrics"                 `
	MetricPrefix string   `short:"p" long:"metric-prefix"           default:"sender."        description:"Metric name prefix"                      `
	MetricSuffix string   `          long:"metric-suffix"           default:".%d"            description:"Metric suffix with cardinality marker"   `
	Rate         uint     `short:"r" long:"rate"                    default:"1000"           description:"Target packets per second"               `
	DatagramSize uint     `          long:"buffer-size"             default:"1500"           description:"Maximum size of datagram to send"        `
	Workers      uint     `short:"w" long:"workers"                 default:"1"              description:"Number of parallel workers to use"       `
	Verbose      bool     `short:"v" long:"verbose"                                          description:"Log every datagram sent"                 `
	Lines        []string `short:"l" long:"line"                                             description:"Raw payload to send as its own datagram" `
	Counts       struct {
		Counter   uint64 ` short:"c" long:"counter-count"                                    description:"Number of counters to send"              `
		Gauge     uint64 ` short:"g" long:"gauge-count"                                      description:"Number of gauges to send"                `
		Set       uint64 ` short:"s" long:"set-count"                                        description:"Number of sets to send"                  `
		Timer     uint64 ` short:"t" long:"timer-count"                                      description:"Number of timers to send"                `
		Histogram uint64 `          long:"histogram-count"                                  description:"Number of histograms to send"            `
		Meter     uint64 ` short:"m" long:"meter-count"                                      description:"Number of meters to send"                `
	} `group:"Metric count"`
	NameCard struct {
		Counter   uint `           long:"counter-cardinality"     default:"1"              description:"Cardinality of counter names"            `
		Gauge     uint `           long:"gauge-cardinality"       default:"1"              description:"Cardinality of gauges names"             `
		Set       uint `           long:"set-cardinality"         default:"1"              description:"Cardinality of set names"                `
		Timer     uint `           long:"timer-cardinality"       default:"1"              description:"Cardinality of timer names"              `
		Histogram uint `           long:"histogram-cardinality"   default:"1"              description:"Cardinality of histogram names"          `
		Meter     uint `           long:"meter-cardinality"       default:"1"              description:"Cardinality of meter names"              `
	} `group:"Name cardinality"`
	TagCard struct {
		Counter   []uint `         long:"counter-tag-cardinality"                          description:"Cardinality of count tags"               `
		Gauge     []uint `         long:"gauge-tag-cardinality"                            description:"Cardinality of gauge tags"               `
		Set       []uint `         long:"set-tag-cardinality"                              description:"Cardinality of set tags"                 `
		Timer     []uint `         long:"timer-tag-cardinality"                            description:"Cardinality of timer tags"               `
		Histogram []uint `         long:"histogram-tag-cardinality"                        description:"Cardinality of histogram tags"           `
		Meter     []uint `         long:"meter-tag-cardinality"                            description:"Cardinality of meter tags"               `
	} `group:"Tag cardinality"`
	ValueRange struct {
		Counter   uint `           long:"counter-value-limit"     default:"0"              description:"Maximum value of counters minus one"     `
		Gauge     uint `           long:"gauge-value-limit"       default:"1"              description:"Maximum value of gauges"                 `
		Set       uint `           long:"set-value-cardinality"   default:"1"              description:"Maximum number of values to send per set"`
		Timer     uint `           long:"timer-value-limit"       default:"1"              description:"Maximum value of timers"                 `
		Histogram uint `           long:"histogram-value-limit"   default:"1"              description:"Maximum value of histograms"             `
		Meter     uint `           long:"meter-value-limit"       default:"1"              description:"Maximum value of meters"                 `
	} `group:"Value range"`
}

func (o *commandOptions) totalCount() uint64 {
	return o.Counts.Counter + o.Counts.Gauge + o.Counts.Set + o.Counts.Timer + o.Counts.Histogram + o.Counts.Meter
}

func newParser(opts *commandOptions) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "" + // because gofmt
		"Sends StatsD lines to a server, typically a running mock.\n\n" +
		"Each --line is sent verbatim as one datagram. Metric counts generate random lines instead.\n" +
		"When specifying cardinality, the tag cardinality can be specified multiple times,\n" +
		"and each tag will be named tagN:M.  The maximum total cardinality will be:\n\n" +
		"|name| * |tag1| * |tag2| * ... * |tagN|\n\n" +
		"Care should be taken to not cause a combinatorial explosion."
	return parser
}

// validate checks options which go-flags can not express.
func validate(opts *commandOptions, positional []string) error {
	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		return fmt.Errorf("no positional arguments allowed")
	}
	if len(opts.Lines) == 0 && opts.totalCount() == 0 {
		return fmt.Errorf("at least one --line or a non-zero metric count is required")
	}
	if opts.Rate == 0 || opts.Workers == 0 {
		return fmt.Errorf("rate and workers must be non-zero")
	}
	for _, card := range []uint{
		opts.NameCard.Counter, opts.NameCard.Gauge, opts.NameCard.Set,
		opts.NameCard.Timer, opts.NameCard.Histogram, opts.NameCard.Meter,
	} {
		if card == 0 {
			return fmt.Errorf("name cardinality must be non-zero")
		}
	}
	return nil
}

func parseArgs(args []string) commandOptions {
	var opts commandOptions
	parser := newParser(&opts)

	positional, err := parser.ParseArgs(args)
	if err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
			_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
			os.Exit(1)
		}
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if err := validate(&opts, positional); err != nil {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\n%v\n", err)
		os.Exit(1)
	}
	return opts
}

// isHelp is a helper to test the error from ParseArgs() to
// determine if the help message was written. It is safe to
// call without first checking that error is nil.
func isHelp(err error) bool {
	if err == nil { // No error
		return false
	}

	flagError, ok := err.(*flags.Error)
	if !ok { // Not a go-flag error
		return false
	}

	return flagError.Type == flags.ErrHelp
}
