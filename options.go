package ice

import (
	"time"

	"github.com/lanikai/ice/iceerr"
)

// Compatibility selects the wire-level dialect an Agent speaks, per spec §4.1
// "compatibility mode." RFC5245 is the default. The only carve-out the
// agent applies today is Google's: relayed candidates never share a
// foundation. Priorities, STUN messages and check-list behaviour are the
// same in every mode.
type Compatibility int

const (
	CompatibilityRFC5245 Compatibility = iota
	CompatibilityGoogle
	CompatibilityMSN
	CompatibilityWLM2009
	CompatibilityOC2007
	CompatibilityOC2007R2
)

func (c Compatibility) String() string {
	switch c {
	case CompatibilityRFC5245:
		return "RFC5245"
	case CompatibilityGoogle:
		return "Google"
	case CompatibilityMSN:
		return "MSN"
	case CompatibilityWLM2009:
		return "WLM2009"
	case CompatibilityOC2007:
		return "OC2007"
	case CompatibilityOC2007R2:
		return "OC2007R2"
	default:
		return "Unknown"
	}
}

// msnCompat reports whether c uses the MSN-family framing quirks (4-byte
// MS-TURN style TCP frame headers) rather than RFC 4571's 2-byte header.
func (c Compatibility) msnCompat() bool {
	switch c {
	case CompatibilityMSN, CompatibilityWLM2009, CompatibilityOC2007, CompatibilityOC2007R2:
		return true
	default:
		return false
	}
}

// Default timer/timeout constants, spec §4.3/§4.6/§4.7/§8.
const (
	DefaultTa               = 20 * time.Millisecond
	DefaultStunTimeout       = 500 * time.Millisecond
	DefaultKeepaliveInterval = 15 * time.Second
	DefaultRegularNomination = false
)

// Options configures a new Agent. Construct with NewOptions and apply
// functional options, matching the teacher's Config pattern in
// internal/ice/ice.go (Config struct + WithX setters), generalized here to
// the full surface SPEC_FULL.md §10.3 describes.
type Options struct {
	Compatibility Compatibility

	Controlling       bool
	AggressiveNominate bool // spec §4.5 "regular vs aggressive nomination"

	Ta                time.Duration // pacing interval between ordinary checks
	StunTimeout       time.Duration // STUN transaction RTO floor
	KeepaliveInterval time.Duration

	PortMin, PortMax int // 0,0 means OS-assigned

	TurnServers []*TurnServer

	ServerReflexiveStunServers []Address // addresses of plain STUN servers used for SRFLX discovery only

	MaxComponents int // per-stream component cap, spec §3 "1..256"

	Software string // STUN SOFTWARE attribute, spec §4.3

	Metrics MetricsRecorder
}

// Option mutates an Options value being built up by NewOptions.
type Option func(*Options)

// NewOptions builds an Options with spec-mandated defaults (spec §8 default
// behavior table) and applies opts in order, so later options override
// earlier ones.
func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		Compatibility:      CompatibilityRFC5245,
		AggressiveNominate: !DefaultRegularNomination,
		Ta:                DefaultTa,
		StunTimeout:       DefaultStunTimeout,
		KeepaliveInterval: DefaultKeepaliveInterval,
		MaxComponents:     256,
		Software:          "ice",
		Metrics:           noopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Options) validate() error {
	if o.PortMin == 0 && o.PortMax != 0 || o.PortMin != 0 && o.PortMax == 0 {
		return iceerr.New("Options.validate", iceerr.InvalidArgument)
	}
	if o.PortMin != 0 && o.PortMin > o.PortMax {
		return iceerr.New("Options.validate", iceerr.InvalidArgument)
	}
	if o.MaxComponents <= 0 || o.MaxComponents > 256 {
		return iceerr.New("Options.validate", iceerr.InvalidArgument)
	}
	return nil
}

// WithCompatibility selects a non-default wire dialect.
func WithCompatibility(c Compatibility) Option {
	return func(o *Options) { o.Compatibility = c }
}

// WithControllingMode sets the agent's initial ICE role (spec §4.5). The
// role may still flip once via role-conflict resolution.
func WithControllingMode(controlling bool) Option {
	return func(o *Options) { o.Controlling = controlling }
}

// WithAggressiveNomination selects aggressive nomination (spec §4.5). This
// is already the default; regular nomination is selected by clearing
// Options.AggressiveNominate.
func WithAggressiveNomination() Option {
	return func(o *Options) { o.AggressiveNominate = true }
}

// WithPacing overrides Ta, the interval between ordinary connectivity checks
// (spec §4.6 "the pacing interval").
func WithPacing(ta time.Duration) Option {
	return func(o *Options) { o.Ta = ta }
}

// WithStunTimeout overrides the STUN transaction retransmission floor (spec
// §4.3).
func WithStunTimeout(d time.Duration) Option {
	return func(o *Options) { o.StunTimeout = d }
}

// WithKeepaliveInterval overrides Tr, the keepalive interval (spec §4.7).
func WithKeepaliveInterval(d time.Duration) Option {
	return func(o *Options) { o.KeepaliveInterval = d }
}

// WithPortRange restricts host candidate gathering to [min,max] (spec §4.2).
func WithPortRange(min, max int) Option {
	return func(o *Options) { o.PortMin, o.PortMax = min, max }
}

// WithTurnServers adds one or more relays to try during gathering (spec
// §4.2 "Relayed candidate discovery").
func WithTurnServers(servers ...*TurnServer) Option {
	return func(o *Options) { o.TurnServers = append(o.TurnServers, servers...) }
}

// WithStunServers adds plain STUN servers used only for server-reflexive
// discovery (no relay allocated).
func WithStunServers(addrs ...Address) Option {
	return func(o *Options) {
		o.ServerReflexiveStunServers = append(o.ServerReflexiveStunServers, addrs...)
	}
}

// WithMaxComponents overrides the per-stream component cap.
func WithMaxComponents(n int) Option {
	return func(o *Options) { o.MaxComponents = n }
}

// WithSoftware sets the STUN SOFTWARE attribute value advertised in
// responses this agent originates.
func WithSoftware(s string) Option {
	return func(o *Options) { o.Software = s }
}

// WithMetrics attaches a MetricsRecorder (internal/metrics.Prometheus or a
// test double); the default is a no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Options) {
		if m != nil {
			o.Metrics = m
		}
	}
}
