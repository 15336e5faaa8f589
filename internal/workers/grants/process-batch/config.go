// internal/workers/grants/process-batch/config.go
package processbatch

// Config enables the optional stages around the core normalize, persist,
// acknowledge pipeline.
type Config struct {
	DedupEnabled  bool
	MirrorEnabled bool
}
