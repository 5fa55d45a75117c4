// Package config provides the quickmail configuration, which is read from
// the environment.
package config

import (
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "quickmail"
	tableFormat = `Quickmail is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main.
	Version = ""

	// BuildDate for this build, set by main.
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Web      Web
	Compose  Compose
	Backend  Backend
}

// Web contains the composer API server configuration.
type Web struct {
	Addr        string        `required:"true" default:"0.0.0.0:9000" desc:"Composer API IP4 host:port"`
	MaxIdle     time.Duration `required:"true" default:"60s" desc:"HTTP read/write timeout"`
	CORSOrigin  string        `default:"" desc:"Allowed CORS origin, empty disables CORS headers"`
	PingPeriod  time.Duration `required:"true" default:"30s" desc:"WebSocket keepalive interval"`
	SessionIdle time.Duration `required:"true" default:"2h" desc:"Idle composer sessions are discarded after this"`
}

// Compose contains the compose pipeline configuration.
type Compose struct {
	BackendURL      string        `required:"true" default:"http://127.0.0.1:8000" desc:"Base URL of the send/generate backend"`
	Timeout         time.Duration `required:"true" default:"30s" desc:"Backend request timeout"`
	MaxFiles        int           `required:"true" default:"10" desc:"Maximum attachments per message"`
	MaxFileBytes    int64         `required:"true" default:"26214400" desc:"Maximum size per attachment"`
	NotifyTTL       time.Duration `required:"true" default:"5s" desc:"Lifetime of a user notification"`
	PlaceholderBody string        `required:"true" default:"Email body" desc:"Text body used when nothing else resolves"`
}

// Backend contains the embedded send/generate backend configuration.
type Backend struct {
	Enabled   bool          `default:"false" desc:"Run the embedded backend?"`
	Addr      string        `default:"0.0.0.0:8000" desc:"Backend IP4 host:port"`
	From      string        `default:"quickmail@localhost" desc:"From address for outbound mail"`
	FromName  string        `default:"Quickmail" desc:"From display name"`
	Provider  string        `default:"stdout" desc:"Delivery provider: stdout, mbox, or ses"`
	MboxPath  string        `default:"/tmp/quickmail.mbox" desc:"Mbox file for the mbox provider"`
	Generator string        `default:"template" desc:"Body generator: template or anthropic"`
	GenKey    string        `desc:"API key for the anthropic generator"`
	GenModel  string        `default:"claude-sonnet-4-5" desc:"Model for the anthropic generator"`
	GenWait   time.Duration `default:"60s" desc:"Generator request timeout"`
	SES       SES
}

// SES contains AWS SES delivery configuration.
type SES struct {
	Region    string `default:"us-east-1" desc:"AWS region for SES"`
	AccessKey string `desc:"AWS access key ID, empty uses the default chain"`
	SecretKey string `desc:"AWS secret access key"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
