package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout applied by the network transport.
	// The pipeline itself never enforces a timeout.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token exchange.
	ShortHTTPTimeout = 10 * time.Second
)

// Transport retry limits. Retries only ever cover connection errors.
const (
	// DefaultRetryMax disables transport retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait between connection retries.
	DefaultRetryWaitMin = 100 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait between connection retries.
	DefaultRetryWaitMax = 2 * time.Second
)

// HTTP headers and media types.
const (
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderUserAgent     = "User-Agent"
	HeaderRequestID     = "X-Request-ID"

	// MediaTypeJSON is forced on requests whose body was serialized by the pipeline.
	MediaTypeJSON = "application/json"

	// DefaultAccept mirrors what browsers' fetch sends for API calls.
	DefaultAccept = "application/json, text/plain, */*"

	// DefaultUserAgent identifies the client on outgoing requests.
	DefaultUserAgent = "fetchx-go/1.0"
)

// List state defaults.
const (
	// FirstPage is the page a list store starts from and returns to on reset.
	FirstPage = 1

	// DefaultLimitField is the query parameter carrying the page size.
	DefaultLimitField = "limit"

	// DefaultSkipField is the query parameter carrying the offset.
	DefaultSkipField = "skip"
)

// Cache defaults.
const (
	// DefaultNATSBucket is the JetStream KeyValue bucket used by the NATS store.
	DefaultNATSBucket = "fetchx_cache"

	// DefaultSQLiteTable is the table used by the SQLite store.
	DefaultSQLiteTable = "fetchx_cache"
)

// Output format constants.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// CLI constants.
const (
	// ConfigDirName is the directory under $HOME holding the CLI config.
	ConfigDirName = ".fetchx"

	// EnvPrefix is the prefix for environment variables read by the CLI and library.
	EnvPrefix = "FETCHX"

	// TableCellMaxWidth truncates long values in table output.
	TableCellMaxWidth = 60
)
