package archive

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/logvault/logvault/internal/retention"
	"github.com/logvault/logvault/pkg/types"
)

// Daemon triggers the archival run for the previous calendar day and the
// periodic approaching-expiry scan. The skip-if-exists check in the job makes
// the interval loop safe to run far more often than once per day.
type Daemon struct {
	job          *Job
	monitor      *retention.Monitor
	runInterval  time.Duration
	scanInterval time.Duration
	windowDays   int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDaemon creates an archival daemon.
func NewDaemon(job *Job, monitor *retention.Monitor, runInterval, scanInterval time.Duration, windowDays int) *Daemon {
	if runInterval <= 0 {
		runInterval = time.Hour
	}
	if scanInterval <= 0 {
		scanInterval = 24 * time.Hour
	}
	return &Daemon{
		job:          job,
		monitor:      monitor,
		runInterval:  runInterval,
		scanInterval: scanInterval,
		windowDays:   windowDays,
	}
}

// Start begins the archival loop. It runs until the context is cancelled or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("archive: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Stop gracefully stops the daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

// run is the main loop.
func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	// Run immediately on start
	d.archiveYesterday(ctx)
	d.scanExpiry(ctx)

	archiveTicker := time.NewTicker(d.runInterval)
	defer archiveTicker.Stop()
	scanTicker := time.NewTicker(d.scanInterval)
	defer scanTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-archiveTicker.C:
			d.archiveYesterday(ctx)
		case <-scanTicker.C:
			d.scanExpiry(ctx)
		}
	}
}

// archiveYesterday archives the previous UTC calendar day.
func (d *Daemon) archiveYesterday(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	date := types.Today().Prev()
	result, err := d.job.ArchiveDay(ctx, date)
	if err != nil {
		log.Printf("archive: daemon run for %s aborted: %v", date, err)
		return
	}
	if !result.Success {
		log.Printf("archive: daemon run for %s finished with errors: %v", date, result.Errors)
	}
}

func (d *Daemon) scanExpiry(ctx context.Context) {
	if ctx.Err() != nil || d.monitor == nil {
		return
	}

	count, err := d.monitor.ScanApproachingExpiry(ctx, d.windowDays)
	if err != nil {
		log.Printf("archive: expiry scan failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("archive: %d blobs approach retention expiry within %d days", count, d.windowDays)
	}
}
