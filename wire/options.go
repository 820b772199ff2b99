package wire

import "twowire/config"

// WithConfig applies a configured bus entry: its role and address for
// Begin, its clocking and its wait timeout.
func WithConfig(b config.Bus) Option {
	return func(d *Driver) {
		if b.IsSlave() {
			d.defRole = RoleSlave
			d.defOwn = b.Address
		} else {
			d.defRole = RoleMaster
			d.mcfg = b.MasterConfig()
		}
		WithTimeout(b.Timeout())(d)
	}
}
