package config

import (
	"fmt"

	"github.com/groundstation/bplib/internal/bytesize"
)

// WrapResponse selects the behavior `load()` takes when the active
// table has no vacant slot for a freshly emitted bundle.
type WrapResponse int

const (
	// WrapResend retransmits the oldest outstanding bundle instead of
	// emitting a new one, reusing its slot.
	WrapResend WrapResponse = iota
	// WrapBlock waits on the active-table condvar for up to WrapTimeout
	// (an acknowledgment wakes it early) and then returns an overflow
	// status.
	WrapBlock
	// WrapDrop evicts the oldest outstanding bundle unacknowledged,
	// counting it as lost, and reuses its slot immediately.
	WrapDrop
)

func (w WrapResponse) String() string {
	switch w {
	case WrapResend:
		return "RESEND"
	case WrapBlock:
		return "BLOCK"
	case WrapDrop:
		return "DROP"
	default:
		return fmt.Sprintf("WrapResponse(%d)", int(w))
	}
}

// Attributes is the channel.Open configuration surface: the eleven
// options a caller may get/set on a channel, either programmatically or
// via a loaded Config. Setting any field through channel.SetAttributes
// clears the channel's prebuilt-header flag, forcing the next store()
// to re-serialize the cached header.
type Attributes struct {
	// Lifetime is the number of seconds until an outgoing bundle's
	// header is considered expired. 0 = never.
	Lifetime int64 `mapstructure:"lifetime" validate:"gte=0" yaml:"lifetime"`

	// RequestCustody sets the CTEB on outgoing bundles.
	RequestCustody bool `mapstructure:"request_custody" yaml:"request_custody"`

	// AdminRecord tags outgoing bundles as administrative (used for ACS
	// emission; callers rarely set this directly).
	AdminRecord bool `mapstructure:"admin_record" yaml:"admin_record"`

	// IntegrityCheck includes a BIB-equivalent integrity trailer.
	IntegrityCheck bool `mapstructure:"integrity_check" yaml:"integrity_check"`

	// AllowFragmentation permits the fragment flag in outgoing headers.
	AllowFragmentation bool `mapstructure:"allow_fragmentation" yaml:"allow_fragmentation"`

	// CipherSuite is an integer index into the BIB cipher-suite table.
	// This module does not implement cipher suites (see Non-goals); the
	// value is carried through unvalidated beyond non-negativity.
	CipherSuite int `mapstructure:"cipher_suite" validate:"gte=0" yaml:"cipher_suite"`

	// Timeout is the retransmit timeout in seconds. 0 disables
	// retransmission.
	Timeout int64 `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`

	// MaxLength bounds the length of an emitted bundle in bytes. Accepts
	// human-readable sizes in a config file ("64Ki", "1Mi") as well as a
	// plain byte count.
	MaxLength bytesize.ByteSize `mapstructure:"max_length" validate:"gte=0" yaml:"max_length"`

	// WrapResponse selects the active-table wrap policy.
	WrapResponse WrapResponse `mapstructure:"wrap_response" validate:"oneof=0 1 2" yaml:"wrap_response"`

	// CidReuse reuses the original CID on retransmit instead of
	// assigning a fresh one.
	CidReuse bool `mapstructure:"cid_reuse" yaml:"cid_reuse"`

	// DacsRate is the number of seconds between forced ACS emissions.
	// 0 disables the timer; emission then happens only on the
	// max_gaps_per_dacs threshold or an explicit flush.
	DacsRate int64 `mapstructure:"dacs_rate" validate:"gte=0" yaml:"dacs_rate"`

	// MaxGapsPerDACS is the range-set size threshold (in disjoint
	// ranges) that forces an ACS flush. Not one of the source's eleven
	// named options, but referenced throughout spec.md §4.3/§8 as the
	// companion knob to DacsRate, so it travels with the rest of the
	// attribute set rather than as a separate hardcoded constant.
	MaxGapsPerDACS int `mapstructure:"max_gaps_per_dacs" validate:"gte=0" yaml:"max_gaps_per_dacs"`

	// MaxFillsPerDACS bounds the number of on/off SDNV pairs a single
	// ACS record may carry before the engine must emit another.
	MaxFillsPerDACS int `mapstructure:"max_fills_per_dacs" validate:"gte=0" yaml:"max_fills_per_dacs"`

	// WrapTimeout bounds how long load() blocks on the active-table
	// condvar under WrapBlock before returning an overflow status.
	WrapTimeout int64 `mapstructure:"wrap_timeout_ms" validate:"gte=0" yaml:"wrap_timeout_ms"`

	// ActiveTableSize is the fixed size N of the channel's circular
	// active table, chosen at open() time.
	ActiveTableSize int `mapstructure:"active_table_size" validate:"gt=0" yaml:"active_table_size"`
}

// DefaultAttributes returns the attribute set channel.Open uses when
// the caller passes a nil Attributes.
func DefaultAttributes() Attributes {
	return Attributes{
		Lifetime:        0,
		Timeout:         0,
		MaxLength:       64 * bytesize.KiB,
		WrapResponse:    WrapBlock,
		DacsRate:        0,
		MaxGapsPerDACS:  32,
		MaxFillsPerDACS: 16,
		WrapTimeout:     1000,
		ActiveTableSize: 256,
	}
}
