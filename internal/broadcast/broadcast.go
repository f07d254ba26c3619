// Package broadcast serializes a status-vector snapshot into the
// wire-exact extended-status frame the host expects, on both the periodic
// and the on-demand trigger path.
package broadcast

import (
	"strconv"

	"github.com/kcondict/paycheck4/internal/statusvec"
)

// Config carries the two pieces of outbound frame content that never
// change after construction.
type Config struct {
	UnitAddress     byte   // ASCII digit, e.g. '0'
	SoftwareVersion string // e.g. "PAY-6.22B"
}

// DefaultConfig returns the spec's default unit address and version string.
func DefaultConfig() Config {
	return Config{
		UnitAddress:     '0',
		SoftwareVersion: "PAY-6.22B",
	}
}

// Build serializes a snapshot into one outbound extended-status frame,
// byte-exact per §4.6: "*S|" + unitAddress + "|" + softwareVersion + "|" +
// the five raw flag bytes each pipe-separated + "|P" + template char +
// "|*". The five flag bytes are copied raw, unmask bit included, so a
// value of 0x00 never arises and can't be mistaken for "no data".
func Build(cfg Config, snap statusvec.Snapshot) []byte {
	out := make([]byte, 0, 32+len(cfg.SoftwareVersion))
	out = append(out, '*', 'S', '|')
	out = append(out, cfg.UnitAddress, '|')
	out = append(out, cfg.SoftwareVersion...)
	out = append(out, '|')
	out = append(out, snap.Flags1, '|')
	out = append(out, snap.Flags2, '|')
	out = append(out, snap.Flags3, '|')
	out = append(out, snap.Flags4, '|')
	out = append(out, snap.Flags5, '|', 'P')
	out = append(out, snap.StatusReportTemplateID, '|', '*')
	return out
}

// ParseUnitAddress turns a decimal unit-address configuration value (e.g.
// "0") into the single ASCII byte Build expects. It exists because the
// construction-time configuration surface takes unitAddress as a decimal
// value (see internal/config), not as a raw byte.
func ParseUnitAddress(decimal string) (byte, error) {
	n, err := strconv.Atoi(decimal)
	if err != nil {
		return 0, err
	}
	return byte('0' + n), nil
}
