package cycletime

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Dimensions are the external attributes of a job used for grouping.
// They are owned by the CRUD layer; the engine only reads them.
type Dimensions struct {
	Insurer      string
	VehicleModel string
	Amount       float64
}

// GroupKey names a grouping dimension.
type GroupKey string

const (
	GroupNone       GroupKey = ""
	GroupInsurer    GroupKey = "insurer"
	GroupModel      GroupKey = "model"
	GroupPriceRange GroupKey = "price_range"
	GroupModelPrice GroupKey = "model_price"
)

// ParseGroupKey validates a grouping key name.
func ParseGroupKey(s string) (GroupKey, error) {
	switch k := GroupKey(strings.ToLower(strings.TrimSpace(s))); k {
	case GroupNone, GroupInsurer, GroupModel, GroupPriceRange, GroupModelPrice:
		return k, nil
	default:
		return GroupNone, fmt.Errorf("unknown group %q (want insurer, model, price_range or model_price)", s)
	}
}

// UnknownLabel is the bucket for blank dimension values.
const UnknownLabel = "Unknown"

// Bracket is one price range. A nil Below marks the open-ended top bracket.
type Bracket struct {
	Label string   `yaml:"label"`
	Below *float64 `yaml:"below,omitempty"`
}

// Rules holds every normalization table. It is data, loaded from configuration.
type Rules struct {
	PriceBrackets  []Bracket         `yaml:"price_brackets"`
	ModelAliases   map[string]string `yaml:"model_aliases"`
	InsurerAliases map[string]string `yaml:"insurer_aliases"`

	// canonical alias lookups, set by Compile
	models   map[string]string
	insurers map[string]string
}

func below(v float64) *float64 { return &v }

// DefaultRules returns the brackets used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		PriceBrackets: []Bracket{
			{Label: "Below 50k", Below: below(50000)},
			{Label: "50k-100k", Below: below(100000)},
			{Label: "100k-200k", Below: below(200000)},
			{Label: "200k-500k", Below: below(500000)},
			{Label: "500k+"},
		},
		ModelAliases:   map[string]string{},
		InsurerAliases: map[string]string{},
	}
}

// Validate checks that brackets are strictly increasing, only the last is
// open, and no two aliases of a table normalize to the same key with
// different targets.
func (r Rules) Validate() error {
	if _, err := aliasIndex("model", r.ModelAliases); err != nil {
		return err
	}
	if _, err := aliasIndex("insurer", r.InsurerAliases); err != nil {
		return err
	}
	if len(r.PriceBrackets) == 0 {
		return fmt.Errorf("at least one price bracket is required")
	}
	prev := math.Inf(-1)
	for i, b := range r.PriceBrackets {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("price bracket %d has no label", i)
		}
		last := i == len(r.PriceBrackets)-1
		if b.Below == nil {
			if !last {
				return fmt.Errorf("price bracket %q is open-ended but not last", b.Label)
			}
			continue
		}
		if *b.Below <= prev {
			return fmt.Errorf("price bracket %q threshold %.2f is not above the previous one", b.Label, *b.Below)
		}
		prev = *b.Below
	}
	return nil
}

// Compile validates r and returns a copy with the alias tables indexed by
// their normalized keys. Later edits to the alias maps are not seen by the copy.
func (r Rules) Compile() (Rules, error) {
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	r.models, _ = aliasIndex("model", r.ModelAliases)
	r.insurers, _ = aliasIndex("insurer", r.InsurerAliases)
	return r, nil
}

// aliasIndex keys aliases by canonical spelling. Keys are visited in sorted
// order so a collision is reported, and resolved, the same way every time.
func aliasIndex(table string, aliases map[string]string) (map[string]string, error) {
	from := make([]string, 0, len(aliases))
	for k := range aliases {
		from = append(from, k)
	}
	sort.Strings(from)

	index := make(map[string]string, len(aliases))
	var firstErr error
	for _, k := range from {
		key, to := canonical(k), canonical(aliases[k])
		if key == "" || to == "" {
			continue
		}
		if prev, ok := index[key]; ok {
			if prev != to && firstErr == nil {
				firstErr = fmt.Errorf("%s alias %q maps to both %q and %q", table, key, prev, to)
			}
			continue
		}
		index[key] = to
	}
	return index, firstErr
}

// PriceRange maps an amount to the first bracket whose threshold it is below.
// Amounts beyond a closed top bracket fall into the last bracket.
func (r Rules) PriceRange(amount float64) string {
	for _, b := range r.PriceBrackets {
		if b.Below == nil || amount < *b.Below {
			return b.Label
		}
	}
	if n := len(r.PriceBrackets); n > 0 {
		return r.PriceBrackets[n-1].Label
	}
	return UnknownLabel
}

// NormalizeModel canonicalises a free-text vehicle model.
func (r Rules) NormalizeModel(s string) string {
	if r.models == nil {
		r.models, _ = aliasIndex("model", r.ModelAliases)
	}
	return normalize(s, r.models)
}

// NormalizeInsurer canonicalises an insurer name.
func (r Rules) NormalizeInsurer(s string) string {
	if r.insurers == nil {
		r.insurers, _ = aliasIndex("insurer", r.InsurerAliases)
	}
	return normalize(s, r.insurers)
}

// Label returns the group label of d under key.
func (r Rules) Label(key GroupKey, d Dimensions) string {
	switch key {
	case GroupInsurer:
		return r.NormalizeInsurer(d.Insurer)
	case GroupModel:
		return r.NormalizeModel(d.VehicleModel)
	case GroupPriceRange:
		return r.PriceRange(d.Amount)
	case GroupModelPrice:
		return r.NormalizeModel(d.VehicleModel) + " / " + r.PriceRange(d.Amount)
	default:
		return ""
	}
}

// normalize trims, collapses inner whitespace and upper-cases s, then applies
// the canonical alias index. There is no fuzzy matching, so two distinct
// spellings stay distinct unless an alias joins them.
func normalize(s string, index map[string]string) string {
	key := canonical(s)
	if key == "" {
		return UnknownLabel
	}
	if to, ok := index[key]; ok {
		return to
	}
	return key
}

func canonical(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
