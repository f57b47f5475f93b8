// Package aggregate folds per-file extraction results into the run result.
package aggregate

import (
	"log"
	"strings"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// Merge folds results in slice order. Nil results count as failed files and
// results without a host name as unnamed; both contribute nothing else.
// Success and error totals come from named files only. Hosts whose name
// contains the server marker are kept in Nodes; when two files announce the
// same host the later one replaces the earlier.
func Merge(results []*model.LogFileResult) *model.AggregateResult {
	agg := model.NewAggregateResult()
	owner := make(map[string]string)

	for _, res := range results {
		agg.Totals.Files++
		if res == nil {
			agg.Totals.FailedFiles++
			continue
		}
		agg.Totals.Lines += res.Lines
		agg.Totals.Malformed += res.Malformed
		agg.Totals.OutOfRange += res.OutOfRange

		if !res.HasName() {
			agg.Totals.UnnamedFiles++
			continue
		}
		agg.Totals.NamedFiles++
		agg.Totals.Successes += res.SuccessCount
		agg.Totals.Errors += res.ErrorCount

		if !strings.Contains(res.Name, model.ServerMarker) {
			continue
		}
		if prev, ok := owner[res.Name]; ok {
			log.Printf("aggregate: host %q announced by %s and %s, keeping %s", res.Name, prev, res.Path, res.Path)
		}
		owner[res.Name] = res.Path
		agg.Nodes[res.Name] = res.Series
	}
	return agg
}
