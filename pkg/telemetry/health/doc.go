// Package health runs named readiness checks concurrently and reports
// their combined status. The status command uses it to probe the proxy
// and the local TLS material, and to wait for a proxy that is starting.
//
//	checker := health.New(5 * time.Second)
//	checker.Register("proxy", c.Ping)
//	report := checker.Run(ctx)
//	if !report.Ready() {
//		...
//	}
package health
