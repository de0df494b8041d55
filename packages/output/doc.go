// Package output renders run results and request logs.
//
// Result formatters (console, json, junit, tap) implement Formatter and
// receive one runner.RunResult per suite file. Flush is called once after
// the last file.
//
// Reports are built from recorder entries rather than results, so they can
// be regenerated later from a stored log:
//
//	output.WriteHTMLReport(w, rec.Entries(), output.WithTitle("Nightly"))
//	output.WriteJSONReport(w, rec.Entries())
package output
