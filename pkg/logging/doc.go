// Package logging configures the JSON slog logger shared by kstatd.
//
// The CLI installs the default logger once, before any command runs:
//
//	logging.SetDefaultStructuredLogger("kstatd", version, cmd.String("log-level"))
//
// The level comes from --log-level, which falls back to LOG_LEVEL and then
// to info. --debug forces debug, which also adds the source location to
// every record. Every record carries the module and version attributes:
//
//	{"time":"...","level":"WARN","msg":"datasource failed","module":"kstatd",
//	 "version":"v0.3.0","datasource":"ipmi","code":"TIMEOUT","error":"..."}
//
// Records worth knowing when operating the exporter:
//   - "datasource failed" (warn): one datasource failed or timed out during
//     a scrape; the rest of the snapshot is still served.
//   - "request denied" (warn): a scrape was refused by the address or token
//     check. Emitted only with log_denied_requests.
//   - "not found" (warn): an unknown path. Emitted only with
//     log_404_requests.
//   - "conntrack netlink dump refused, falling back to procfs" (debug).
//
// NewLogLogger adapts the default handler for http.Server.ErrorLog so TLS
// handshake and connection errors land in the same stream.
package logging
