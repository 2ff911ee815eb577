package mockstatsd

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	// DefaultMetricsAddr is the default address on which to listen for metrics.
	DefaultMetricsAddr = "127.0.0.1:8125"
	// DefaultMaxReaders is the default number of socket reading goroutines.
	DefaultMaxReaders = 1
	// DefaultReceiveBufferSize is the default size of the per-reader datagram buffer.
	// ip packet size is stored in two bytes and that is how big in theory the packet can be.
	DefaultReceiveBufferSize = 0xffff
	// DefaultRecordCalls is the default for keeping raw payloads for verification.
	DefaultRecordCalls = true
	// DefaultPollInterval is how often Await* helpers re-check the server state.
	DefaultPollInterval = 10 * time.Millisecond
)

const (
	// ParamMetricsAddr is the name of parameter with address on which to listen for metrics.
	ParamMetricsAddr = "metrics-addr"
	// ParamMaxReaders is the name of parameter with number of socket readers.
	ParamMaxReaders = "max-readers"
	// ParamReusePort is the name of parameter which enables SO_REUSEPORT on the metrics socket.
	ParamReusePort = "reuse-port"
	// ParamReceiveBufferSize is the name of parameter with the size of the datagram buffer.
	ParamReceiveBufferSize = "receive-buffer-size"
	// ParamRecordCalls is the name of parameter which enables recording of raw payloads.
	ParamRecordCalls = "record-calls"
	// ParamWebAddr is the name of parameter with the address of the inspection API.
	ParamWebAddr = "web-addr"
	// ParamPollInterval is the name of parameter with the interval between Await* checks.
	ParamPollInterval = "poll-interval"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamMetricsAddr, DefaultMetricsAddr, "Address on which to listen for metrics")
	fs.Int(ParamMaxReaders, DefaultMaxReaders, "Maximum number of socket readers")
	fs.Bool(ParamReusePort, false, "Open the metrics socket with SO_REUSEPORT")
	fs.Int(ParamReceiveBufferSize, DefaultReceiveBufferSize, "Size of the datagram buffer of each reader")
	fs.Bool(ParamRecordCalls, DefaultRecordCalls, "Record raw payloads for call verification")
	fs.String(ParamWebAddr, "", "If set, serve the inspection API on this address")
	fs.Duration(ParamPollInterval, DefaultPollInterval, "Interval between checks while awaiting a metric or call")
}
