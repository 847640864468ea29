// Package accounts loads the local account policy that decides which funding
// accounts have a tracked cash balance.
package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// Override adjusts how a single account is treated.
type Override struct {
	Name        string   `yaml:"name"`
	Tracked     *bool    `yaml:"tracked"`
	CreditLimit *float64 `yaml:"credit_limit"`
	AnnualRate  *float64 `yaml:"annual_rate"`
}

// PolicyConfig is the YAML document.
type PolicyConfig struct {
	TrackedTypes []model.AccountType `yaml:"tracked_types"`
	Accounts     []Override          `yaml:"accounts"`
}

// Policy answers tracking questions for accounts.
type Policy struct {
	trackedTypes map[model.AccountType]bool
	overrides    map[string]Override
}

// DefaultTrackedTypes are the account types whose balance is validated.
// Credit cards draw on a credit line and are not tracked.
var DefaultTrackedTypes = []model.AccountType{model.AccountCash, model.AccountDebit, model.AccountPrepaid}

// DefaultPolicy tracks DefaultTrackedTypes with no overrides.
func DefaultPolicy() *Policy {
	return NewPolicy(PolicyConfig{})
}

// NewPolicy builds a Policy from a parsed configuration.
func NewPolicy(cfg PolicyConfig) *Policy {
	types := cfg.TrackedTypes
	if len(types) == 0 {
		types = DefaultTrackedTypes
	}

	p := &Policy{
		trackedTypes: make(map[model.AccountType]bool, len(types)),
		overrides:    make(map[string]Override, len(cfg.Accounts)),
	}
	for _, t := range types {
		p.trackedTypes[t] = true
	}
	for _, o := range cfg.Accounts {
		p.overrides[o.Name] = o
	}
	return p
}

// LoadPolicy reads a policy file. An empty path or a missing file yields DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account policy: %w", err)
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse account policy YAML: %w", err)
	}

	for _, t := range cfg.TrackedTypes {
		switch t {
		case model.AccountCash, model.AccountDebit, model.AccountPrepaid, model.AccountCredit:
		default:
			return nil, fmt.Errorf("unknown account type %q in tracked_types", t)
		}
	}

	return NewPolicy(cfg), nil
}

// IsTracked reports whether payments from acct are validated against its balance.
func (p *Policy) IsTracked(acct model.Account) bool {
	if o, ok := p.overrides[acct.Name]; ok && o.Tracked != nil {
		return *o.Tracked
	}
	return p.trackedTypes[acct.Type]
}

// IsTrackedName is IsTracked for an account known only by name.
// Unknown accounts are tracked only when an override says so.
func (p *Policy) IsTrackedName(name string) bool {
	if o, ok := p.overrides[name]; ok && o.Tracked != nil {
		return *o.Tracked
	}
	return false
}

// CreditLimit returns the overdraft allowance added to acct's balance.
// Only debit and prepaid style accounts carry one; cash wallets never do.
func (p *Policy) CreditLimit(acct model.Account) float64 {
	if o, ok := p.overrides[acct.Name]; ok && o.CreditLimit != nil {
		return *o.CreditLimit
	}
	switch acct.Type {
	case model.AccountDebit, model.AccountPrepaid:
		return acct.CreditLimit
	}
	return 0
}

// AnnualRate returns the configured annual rate for acct, or nil.
func (p *Policy) AnnualRate(acct model.Account) *float64 {
	if o, ok := p.overrides[acct.Name]; ok && o.AnnualRate != nil {
		return o.AnnualRate
	}
	return acct.AnnualRate
}
