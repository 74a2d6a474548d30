package plans

import (
	"context"
	"slices"
)

type Config struct {
	File               string `env:"PLANS_FILE"`
	Currency           string `env:"PLANS_CURRENCY" envDefault:"INR"`
	FreeCredits        int64  `env:"FREE_CREDITS" envDefault:"5"`
	UnlimitedThreshold int64  `env:"UNLIMITED_CREDITS_THRESHOLD" envDefault:"1000"`
}

// Load builds the table from cfg.File when set, otherwise from Defaults.
// Currency and threshold from the file win over the environment.
// FREE_CREDITS always overrides the free plan allotment.
func Load(ctx context.Context, cfg Config) (*Table, error) {
	currency, threshold := cfg.Currency, cfg.UnlimitedThreshold

	var list []Plan
	if cfg.File != "" {
		f, err := ReadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		list = f.Plans
		if f.Currency != "" {
			currency = f.Currency
		}
		if f.UnlimitedThreshold > 0 {
			threshold = f.UnlimitedThreshold
		}
	} else {
		list = Defaults(cfg.FreeCredits)
	}

	if i := slices.IndexFunc(list, func(p Plan) bool { return p.ID == FreePlanID }); i >= 0 && cfg.FreeCredits > 0 {
		list[i].Credits = cfg.FreeCredits
	}

	return NewTable(ctx, NewInMemSource(list...), currency, threshold)
}
