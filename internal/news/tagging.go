package news

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sawpanic/intelrun/internal/models"
)

// categoryContext lists the context words a short uppercase alias
// (<= 3 chars) must co-occur with before it counts as an entity match.
var categoryContext = map[string][]string{
	"crypto": {"crypto", "coin", "token", "blockchain", "exchange", "defi", "etf"},
	"energy": {"oil", "gas", "energy", "barrel", "opec", "refinery", "pipeline"},
	"tech":   {"tech", "chip", "semiconductor", "software", "ai", "cloud", "platform"},
}

var (
	wordBoundaryMu    sync.Mutex
	wordBoundaryCache = map[string]*regexp.Regexp{}
)

// wholeWordRe compiles and caches the boundary pattern for an alias.
// Annotation runs concurrently, so the cache is lock-guarded.
func wholeWordRe(alias string) *regexp.Regexp {
	wordBoundaryMu.Lock()
	defer wordBoundaryMu.Unlock()
	if re, ok := wordBoundaryCache[alias]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`)
	wordBoundaryCache[alias] = re
	return re
}

var alnumRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// matchEntities scans the title against every watchlist alias. Rules:
// plain alphanumeric aliases match on word boundaries; multi-word or
// punctuated aliases match as substrings; short all-uppercase aliases
// additionally require a category context word.
func matchEntities(title string, wl Watchlist) []string {
	lower := strings.ToLower(title)
	var out []string
	seen := make(map[string]bool)

	for _, cat := range wl.Categories() {
		ctxWords := categoryContext[cat.Name]
		for _, asset := range cat.Assets {
			for _, alias := range asset.Aliases {
				if alias == "" || seen[asset.Symbol] {
					continue
				}
				var hit bool
				if alnumRe.MatchString(alias) {
					hit = wholeWordRe(alias).MatchString(title)
					if hit && len(alias) <= 3 && alias == strings.ToUpper(alias) && isAlpha(alias) {
						hit = containsAny(lower, ctxWords)
					}
				} else {
					hit = strings.Contains(lower, strings.ToLower(alias))
				}
				if hit {
					seen[asset.Symbol] = true
					out = append(out, asset.Symbol)
					break
				}
			}
		}
	}
	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// actorGroup ties a set of canonical persons to a tiered boost.
type actorGroup struct {
	name    string
	boost   float64
	members []string
}

// actorGroups carries the known-actor registry. Boost tiers:
// central-bank heads +12, EU officials and regulators +10, regional
// leaders, energy ministers and defense/security +8.
var actorGroups = []actorGroup{
	{name: "CENTRAL_BANK_HEADS", boost: 12, members: []string{
		"jerome powell", "christine lagarde", "kazuo ueda", "andrew bailey",
	}},
	{name: "EU_OFFICIALS", boost: 10, members: []string{
		"ursula von der leyen", "charles michel", "josep borrell",
	}},
	{name: "REGULATORS", boost: 10, members: []string{
		"gary gensler", "paul atkins",
	}},
	{name: "REGIONAL_LEADERS", boost: 8, members: []string{
		"recep tayyip erdogan", "vladimir putin", "volodymyr zelensky",
		"benjamin netanyahu", "mohammed bin salman",
	}},
	{name: "ENERGY_MINISTERS", boost: 8, members: []string{
		"abdulaziz bin salman", "alexander novak",
	}},
	{name: "DEFENSE_SECURITY", boost: 8, members: []string{
		"mark rutte", "lloyd austin",
	}},
}

// personAliases collapses diacritic and short forms onto the canonical
// lowercase name used in actorGroups.
var personAliases = map[string]string{
	"erdogan":    "recep tayyip erdogan",
	"erdoğan":    "recep tayyip erdogan",
	"powell":     "jerome powell",
	"lagarde":    "christine lagarde",
	"von der leyen": "ursula von der leyen",
	"putin":      "vladimir putin",
	"zelensky":   "volodymyr zelensky",
	"zelenskyy":  "volodymyr zelensky",
	"netanyahu":  "benjamin netanyahu",
	"gensler":    "gary gensler",
	"ueda":       "kazuo ueda",
	"bailey":     "andrew bailey",
	"novak":      "alexander novak",
}

// personTopicBoosts add +5 each when present alongside a known actor.
var personTopicKeywords = []string{"policy rate", "sanctions", "tariffs", "oil supply", "ceasefire"}

// matchPerson finds the first known actor named in the title and builds
// a PersonEvent for it. Returns nil when no known actor appears.
func matchPerson(title string) *models.PersonEvent {
	lower := strings.ToLower(title)

	canonical, group, boost := "", "", 0.0
	for _, g := range actorGroups {
		for _, m := range g.members {
			if strings.Contains(lower, m) {
				canonical, group, boost = m, g.name, g.boost
				break
			}
		}
		if canonical != "" {
			break
		}
	}
	if canonical == "" {
		for alias, canon := range personAliases {
			if strings.Contains(lower, alias) {
				canonical = canon
				for _, g := range actorGroups {
					for _, m := range g.members {
						if m == canon {
							group, boost = g.name, g.boost
						}
					}
				}
				break
			}
		}
	}
	if canonical == "" {
		return nil
	}

	topicBoost := 0.0
	for _, kw := range personTopicKeywords {
		if strings.Contains(lower, kw) {
			topicBoost += 5
		}
	}

	stance, stmtType, channels, bias := classifyStance(lower)
	impact := models.Clip100(55 + boost + topicBoost)
	if stance == models.StanceHawkish || stance == models.StanceRiskEscalate {
		impact = models.Clip100(impact + 8)
	}
	confidence := 60.0
	if group != "" {
		confidence = 75
	}
	return &models.PersonEvent{
		Person:         canonicalPersonName(canonical),
		Group:          group,
		Stance:         stance,
		StatementType:  stmtType,
		ImpactChannels: channels,
		BiasLabels:     bias,
		Impact:         impact,
		Confidence:     confidence,
	}
}

func canonicalPersonName(lower string) string {
	parts := strings.Fields(lower)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func classifyStance(lower string) (models.Stance, string, []string, []string) {
	switch {
	case containsAny(lower, []string{"rate hike", "hawkish", "tighten", "inflation persistent", "higher for longer"}):
		return models.StanceHawkish, "policy", []string{"rates", "fx"}, []string{"risk_off"}
	case containsAny(lower, []string{"rate cut", "dovish", "easing", "stimulus"}):
		return models.StanceDovish, "policy", []string{"rates", "equities"}, []string{"risk_on"}
	case containsAny(lower, []string{"sanctions", "strike", "escalat", "attack", "mobilization"}):
		return models.StanceRiskEscalate, "geopolitical", []string{"energy", "fx"}, []string{"risk_off"}
	case containsAny(lower, []string{"ceasefire", "truce", "de-escalat", "peace deal"}):
		return models.StanceRiskDeescalate, "geopolitical", []string{"energy"}, []string{"risk_on"}
	case containsAny(lower, []string{"says", "statement", "speech", "testimony"}):
		return models.StanceNeutral, "statement", nil, nil
	default:
		return models.StanceUnknown, "", nil, nil
	}
}

// countryDef is one country matcher: aliases plus the context words
// that disambiguate.
type countryDef struct {
	name      string
	aliases   []string
	ambiguous bool
}

var countryDefs = []countryDef{
	{name: "Turkey", aliases: []string{"turkey", "turkiye", "ankara"}, ambiguous: true},
	{name: "Georgia", aliases: []string{"georgia", "tbilisi"}, ambiguous: true},
	{name: "Jordan", aliases: []string{"jordan", "amman"}, ambiguous: true},
	{name: "Chad", aliases: []string{"chad"}, ambiguous: true},
	{name: "Niger", aliases: []string{"niger", "niamey"}, ambiguous: true},
	{name: "Russia", aliases: []string{"russia", "moscow", "kremlin"}},
	{name: "Ukraine", aliases: []string{"ukraine", "kyiv"}},
	{name: "China", aliases: []string{"china", "beijing"}},
	{name: "Iran", aliases: []string{"iran", "tehran"}},
	{name: "Saudi Arabia", aliases: []string{"saudi arabia", "saudi", "riyadh"}},
	{name: "United States", aliases: []string{"united states", "washington", "u.s."}},
	{name: "Germany", aliases: []string{"germany", "berlin"}},
	{name: "Israel", aliases: []string{"israel", "tel aviv"}},
}

var countryContext = []string{
	"government", "president", "minister", "border", "economy", "central bank",
	"sanction", "conflict", "election", "parliament", "military", "export",
}

// matchCountries tags countries present in the title. Ambiguous names
// require a context word unless the item category is REGIONAL.
func matchCountries(title, category string) []string {
	lower := strings.ToLower(title)
	hasContext := containsAny(lower, countryContext)
	var out []string
	for _, def := range countryDefs {
		if !containsAny(lower, def.aliases) {
			continue
		}
		if def.ambiguous && !hasContext && category != string(models.CatRegional) {
			continue
		}
		out = append(out, def.name)
	}
	return out
}

// eventTypeRule is one ordered first-match classification rule.
type eventTypeRule struct {
	eventType string
	re        *regexp.Regexp
}

var eventTypeRules = []eventTypeRule{
	{"EARNINGS_GUIDANCE", regexp.MustCompile(`(?i)\b(earnings|guidance|quarterly results|profit warning|revenue beat|revenue miss)\b`)},
	{"REGULATION_LEGAL", regexp.MustCompile(`(?i)\b(sec|regulator|regulation|lawsuit|enforcement|antitrust|fine[sd]?|probe|ruling)\b`)},
	{"MNA", regexp.MustCompile(`(?i)\b(merger|acquisition|acquire[sd]?|takeover|buyout)\b`)},
	{"CAPEX_INVESTMENT", regexp.MustCompile(`(?i)\b(investment|capex|capital spending|new plant|factory|expansion plan)\b`)},
	{"SANCTIONS_GEOPOLITICS", regexp.MustCompile(`(?i)\b(sanction[s]?|geopolitic|ceasefire|military|missile|invasion|tariff[s]?)\b`)},
	{"ENERGY_SUPPLY_OPEC", regexp.MustCompile(`(?i)\b(opec|oil supply|production cut[s]?|barrel[s]?|pipeline|refinery|lng)\b`)},
	{"MACRO_RATES_INFLATION", regexp.MustCompile(`(?i)\b(inflation|interest rate[s]?|rate hike|rate cut|fed|ecb|cpi|gdp|unemployment)\b`)},
	{"CRYPTO_MARKET_STRUCTURE", regexp.MustCompile(`(?i)\b(etf|stablecoin|halving|exchange outflow[s]?|defi|liquidation[s]?|mining difficulty)\b`)},
	{"SECURITY_INCIDENT", regexp.MustCompile(`(?i)\b(hack(ed|er)?|breach|exploit|ransomware|stolen funds)\b`)},
	{"PRODUCT_PLATFORM", regexp.MustCompile(`(?i)\b(launch(es|ed)?|unveil(s|ed)?|new product|platform|release[sd]?|rollout)\b`)},
}

// classifyEventType returns the first matching event type, or OTHER.
func classifyEventType(title string) string {
	for _, rule := range eventTypeRules {
		if rule.re.MatchString(title) {
			return rule.eventType
		}
	}
	return "OTHER"
}
