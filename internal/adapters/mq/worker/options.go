package worker

import "github.com/okian/warden/pkg/logger"

// Option applies a configuration option to the IngestWorker.
type Option func(*IngestWorker)

// WithName sets the worker name used in log lines.
func WithName(name string) Option {
	return func(w *IngestWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *IngestWorker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithRescorer wires the post-ingest score refresh.
func WithRescorer(r Rescorer) Option {
	return func(w *IngestWorker) {
		w.rescorer = r
	}
}
