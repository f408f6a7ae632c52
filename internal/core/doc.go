// Package core orchestrates conversions for the CLI and HTTP frontends.
//
// It sits on top of [parser] and [schema] and adds what a long-running
// service needs around a single conversion:
//
//   - Named schemas: a request names a registered schema, or none for raw mode.
//   - Concurrency: a [Limiter] bounds how many files are held in memory at once.
//   - Summaries: row counts, bytes read and elapsed time for every run.
//   - Persistence: when a [Recorder] is configured, each run and its rejected
//     rows are saved.
//   - Error mapping: [MapError] turns technical errors into coded messages
//     that are safe to show to users.
//
// # Converting
//
//	svc := core.NewService(cfg, nil)
//	out, err := svc.Convert(ctx, core.Request{Source: "people.csv", Schema: "people"})
//	if err != nil {
//	    fmt.Println(core.FormatUserError(err))
//	    return
//	}
//	fmt.Printf("%d rows, %d rejected\n", out.Summary.Rows, out.Summary.Rejected)
//
// Row rejections are never errors at this level; they are counted in the
// summary and returned in Outcome.Records.
package core
