// internal/workers/grants/process-batch/models.go
package processbatch

// Summary holds the per-batch outcome totals.
type Summary struct {
	BatchID      string `json:"batchId"`
	Messages     int    `json:"messages"`
	Success      int    `json:"success"`
	ParseErrors  int    `json:"parseErrors"`
	SaveErrors   int    `json:"saveErrors"`
	Duplicates   int    `json:"duplicates"`
	MirrorErrors int    `json:"mirrorErrors"`
	DeleteErrors int    `json:"deleteErrors"`
}

// HasErrors reports whether any message failed a required stage.
func (s Summary) HasErrors() bool {
	return s.ParseErrors+s.SaveErrors+s.DeleteErrors > 0
}

func (s Summary) totals() map[string]interface{} {
	return map[string]interface{}{
		"success":      s.Success,
		"parseErrors":  s.ParseErrors,
		"saveErrors":   s.SaveErrors,
		"duplicates":   s.Duplicates,
		"mirrorErrors": s.MirrorErrors,
		"deleteErrors": s.DeleteErrors,
	}
}
