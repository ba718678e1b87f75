package profiler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	//nolint
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	minPort = 1024
	maxPort = 49151

	gigabyte = 1 << 30
)

// ServiceOpts holds configuration options for the profiler service.
type ServiceOpts struct {
	Port          int
	StatsInterval time.Duration
	Datadir       string
}

func (o ServiceOpts) validate() error {
	if len(o.Datadir) == 0 {
		return fmt.Errorf("missing profiler datadir")
	}
	if o.Port < minPort || o.Port > maxPort {
		return fmt.Errorf("port must be in range [%d, %d]", minPort, maxPort)
	}
	return nil
}

func (o ServiceOpts) address() string {
	return fmt.Sprintf(":%d", o.Port)
}

// ProfilerService exposes the pprof endpoints of the daemon over HTTP and
// periodically logs memory and goroutine statistics. On shutdown the default
// Prometheus metrics are dumped to a file inside the datadir.
type ProfilerService struct {
	opts   ServiceOpts
	server *http.Server
	stopFn context.CancelFunc

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService returns a new Profiler instance.
func NewService(opts ServiceOpts) (*ProfilerService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	server := &http.Server{Addr: opts.address()}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("profiler: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("profiler: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &ProfilerService{opts, server, nil, logFn, warnFn}, nil
}

// Start starts the profiler.
func (s *ProfilerService) Start() error {
	runtime.SetBlockProfileRate(1)
	//nolint
	go s.server.ListenAndServe()

	ctx, cancelStats := context.WithCancel(context.Background())
	go s.statsLoop(ctx)
	s.stopFn = cancelStats

	s.log("start at url http://localhost:%d/debug/pprof/", s.opts.Port)
	return nil
}

// Stop stops the profiler.
func (s *ProfilerService) Stop() {
	s.stopFn()
	//nolint
	s.server.Shutdown(context.Background())
	s.log("stop")
}

// statsLoop periodically logs memory usage and the number of goroutines of
// the process until the given context is canceled.
func (s *ProfilerService) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.printMemoryStatistics()
			s.log("num of go routines: %v", runtime.NumGoroutine())
		case <-ctx.Done():
			if err := s.dumpPrometheusDefaults(s.opts.Datadir); err != nil {
				s.warn(err, "error while dumping Prometheus defaults")
			}
			return
		}
	}
}

func (s *ProfilerService) printMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.log(
		"total allocated: %.3fGB, heap allocated: %.3fGB, "+
			"allocated objects count: %v, freed objects count: %v",
		toGigabytes(memStats.TotalAlloc),
		toGigabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

// dumpPrometheusDefaults writes default Prometheus metrics to a file named
// after the current time inside the given dir.
func (s *ProfilerService) dumpPrometheusDefaults(dir string) error {
	file, err := os.OpenFile(
		filepath.Join(dir, time.Now().Format(time.RFC3339)),
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}

	return nil
}

func toGigabytes(bytes uint64) float64 {
	return float64(bytes) / gigabyte
}
